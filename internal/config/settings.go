package config

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/arenahq/bot-arena/internal/models"
	"github.com/arenahq/bot-arena/pkg/apierr"
)

// Settings keys, enumerated exactly as spec.md §6 — unrecognized keys are
// rejected on write. This replaces the free-form option map the teacher
// used in internal/config/manager.go's ServiceConfig with a closed set, per
// spec.md §9 "Dynamic config objects → enumerated settings map".
const (
	KeyPaperBotInitialBalance   = "paper_bot_initial_balance"
	KeyLiveBotInitialBalance    = "live_bot_initial_balance"
	KeyTurnIntervalMs           = "turn_interval_ms"
	KeyRefreshIntervalMs        = "refresh_interval_ms"
	KeyMinimumTradeSizeUSD      = "minimum_trade_size_usd"
	KeySymbolCooldownMs         = "symbol_cooldown_ms"
	KeyMinimumPositionDurationMs = "minimum_position_duration_ms"
	KeyTradingSymbols           = "trading_symbols"
	KeyMaxBots                  = "max_bots"
	KeyMaxPositionsPerBot       = "max_positions_per_bot"
	KeyDataRetentionDays        = "data_retention_days"
	KeySessionTimeoutHours      = "session_timeout_hours"
	KeySummaryTokenBudget       = "summary_token_budget"
	KeySummaryMinNewDecisions   = "summary_min_new_decisions"
	KeyEntryFeeRate             = "entry_fee_rate"
	KeyExitFeeRate              = "exit_fee_rate"
	KeyMaintenanceMarginRate    = "maintenance_margin_rate"
)

// kind of value backing a key, used for validation on write.
const (
	typeNumber = "number"
	typeList   = "list"
)

var keyTypes = map[string]string{
	KeyPaperBotInitialBalance:    typeNumber,
	KeyLiveBotInitialBalance:     typeNumber,
	KeyTurnIntervalMs:            typeNumber,
	KeyRefreshIntervalMs:         typeNumber,
	KeyMinimumTradeSizeUSD:       typeNumber,
	KeySymbolCooldownMs:          typeNumber,
	KeyMinimumPositionDurationMs: typeNumber,
	KeyTradingSymbols:            typeList,
	KeyMaxBots:                   typeNumber,
	KeyMaxPositionsPerBot:        typeNumber,
	KeyDataRetentionDays:         typeNumber,
	KeySessionTimeoutHours:       typeNumber,
	KeySummaryTokenBudget:        typeNumber,
	KeySummaryMinNewDecisions:    typeNumber,
	KeyEntryFeeRate:              typeNumber,
	KeyExitFeeRate:               typeNumber,
	KeyMaintenanceMarginRate:     typeNumber,
}

// DefaultSettings are the values seeded on first boot (spec.md §6).
func DefaultSettings() map[string]interface{} {
	return map[string]interface{}{
		KeyPaperBotInitialBalance:    10000.0,
		KeyLiveBotInitialBalance:     1000.0,
		KeyTurnIntervalMs:            60000.0,
		KeyRefreshIntervalMs:         5000.0,
		KeyMinimumTradeSizeUSD:       10.0,
		KeySymbolCooldownMs:          300000.0,
		KeyMinimumPositionDurationMs: 60000.0,
		KeyTradingSymbols:            []interface{}{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		KeyMaxBots:                   50.0,
		KeyMaxPositionsPerBot:        5.0,
		KeyDataRetentionDays:         365.0,
		KeySessionTimeoutHours:       24.0,
		KeySummaryTokenBudget:        25000.0,
		KeySummaryMinNewDecisions:    10.0,
		KeyEntryFeeRate:              0.0003,
		KeyExitFeeRate:               0.0003,
		KeyMaintenanceMarginRate:     0.005,
	}
}

// Settings is the hot-reloadable process-wide settings map. It is the only
// piece of process-wide mutable state besides the market snapshot
// (spec.md §9 "Global state"). Reads take a cache snapshot; writes go
// through the database first so every process (in a future multi-process
// deployment) would observe the same value, though spec.md §1 assumes a
// single process.
type Settings struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]interface{}
}

// NewSettings loads (or seeds) the settings table and returns a ready cache.
func NewSettings(db *gorm.DB) (*Settings, error) {
	s := &Settings{db: db, cache: make(map[string]interface{})}
	if err := s.seedDefaults(); err != nil {
		return nil, err
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) seedDefaults() error {
	for key, val := range DefaultSettings() {
		var existing models.Setting
		err := s.db.Where("key = ?", key).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		row, err := toRow(key, val)
		if err != nil {
			return err
		}
		if err := s.db.Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func toRow(key string, value interface{}) (*models.Setting, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return &models.Setting{Key: key, Value: string(b), Type: keyTypes[key]}, nil
}

// Reload re-reads every settings row from the database into the cache.
func (s *Settings) Reload() error {
	var rows []models.Setting
	if err := s.db.Find(&rows).Error; err != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "settings reload", err)
	}
	cache := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		var val interface{}
		if err := json.Unmarshal([]byte(row.Value), &val); err != nil {
			log.Printf("[CONFIG][WARN] failed to unmarshal setting %s: %v", row.Key, err)
			continue
		}
		cache[row.Key] = val
	}
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	return nil
}

// Set validates the key is enumerated, persists it, and updates the cache.
// Hot-reload: the next read by any goroutine observes the new value
// immediately (no restart required), satisfying spec.md §9.
func (s *Settings) Set(key string, value interface{}) error {
	wantType, ok := keyTypes[key]
	if !ok {
		return apierr.NewValidation(apierr.FieldError{Field: "key", Message: fmt.Sprintf("unrecognized setting key %q", key)})
	}
	if err := validateType(wantType, value); err != nil {
		return apierr.NewValidation(apierr.FieldError{Field: key, Message: err.Error()})
	}

	row, err := toRow(key, value)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "marshal setting", err)
	}
	res := s.db.Model(&models.Setting{}).Where("key = ?", key).Updates(map[string]interface{}{
		"value": row.Value,
		"type":  row.Type,
	})
	if res.Error != nil {
		return apierr.Wrap(apierr.PersistenceFailed, "update setting", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.db.Create(row).Error; err != nil {
			return apierr.Wrap(apierr.PersistenceFailed, "create setting", err)
		}
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

func validateType(want string, value interface{}) error {
	switch want {
	case typeNumber:
		switch value.(type) {
		case float64, int, int64:
			return nil
		default:
			return fmt.Errorf("expected a number")
		}
	case typeList:
		switch value.(type) {
		case []interface{}, []string:
			return nil
		default:
			return fmt.Errorf("expected a list")
		}
	}
	return nil
}

func (s *Settings) get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

// All returns a defensive copy of the entire settings map, used by
// GET /settings and GET /settings/metadata (admin).
func (s *Settings) All() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

func (s *Settings) Float(key string) float64 {
	v, ok := s.get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func (s *Settings) Int(key string) int { return int(s.Float(key)) }

func (s *Settings) Duration(key string) time.Duration {
	return time.Duration(s.Float(key)) * time.Millisecond
}

func (s *Settings) StringList(key string) []string {
	v, ok := s.get(key)
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
