package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Defaults applied when a user interacts for the first time.
const (
	DefaultModel       = "shuttle-3-mini"
	DefaultPersonality = "ShuttleAI"
)

// UserSettings is the per-user configuration read by the bot before each
// completion.
type UserSettings struct {
	UserID      string `gorm:"primaryKey" json:"user_id"`
	Model       string `json:"model"`
	Personality string `json:"personality"`
	TTS         bool   `json:"tts"`
}

// ChatChannel is a channel the bot answers in without being mentioned.
type ChatChannel struct {
	ChannelID string `gorm:"primaryKey" json:"channel_id"`
}

// Store persists user settings and the chat-channel list in SQLite.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open creates or loads the store under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := filepath.Join(dataDir, "shuttlebot.db") + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	if err := db.AutoMigrate(&UserSettings{}, &ChatChannel{}); err != nil {
		return nil, fmt.Errorf("migrate settings database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrCreate returns the settings for userID, inserting the defaults on
// first contact.
func (s *Store) GetOrCreate(userID string) (UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return UserSettings{}, fmt.Errorf("load settings for %s: %w", userID, err)
	}

	settings = UserSettings{
		UserID:      userID,
		Model:       DefaultModel,
		Personality: DefaultPersonality,
		TTS:         false,
	}
	if err := s.db.Create(&settings).Error; err != nil {
		return UserSettings{}, fmt.Errorf("create settings for %s: %w", userID, err)
	}
	return settings, nil
}

// Update overwrites the settings row for settings.UserID.
func (s *Store) Update(settings UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.UserID == "" {
		return fmt.Errorf("update settings: empty user id")
	}
	if err := s.db.Save(&settings).Error; err != nil {
		return fmt.Errorf("update settings for %s: %w", settings.UserID, err)
	}
	return nil
}

// Channels returns all chat-channel IDs.
func (s *Store) Channels() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []ChatChannel
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ChannelID)
	}
	return ids, nil
}

// AddChannel registers a channel; adding an existing one is a no-op.
func (s *Store) AddChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channelID == "" {
		return fmt.Errorf("add channel: empty channel id")
	}
	err := s.db.Where("channel_id = ?", channelID).
		FirstOrCreate(&ChatChannel{ChannelID: channelID}).Error
	if err != nil {
		return fmt.Errorf("add channel %s: %w", channelID, err)
	}
	return nil
}

// RemoveChannel unregisters a channel.
func (s *Store) RemoveChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(&ChatChannel{ChannelID: channelID}).Error; err != nil {
		return fmt.Errorf("remove channel %s: %w", channelID, err)
	}
	return nil
}
