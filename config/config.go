/*
Copyright 2024 SellerDesk Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"SELLERDESK_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"SELLERDESK_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SELLERDESK_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"SELLERDESK_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"SELLERDESK_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"SELLERDESK_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SELLERDESK_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"SELLERDESK_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"SELLERDESK_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"SELLERDESK_TYPESENSE_DNS"`
}

// MarketplaceConfig describes how connectors reach one marketplace. The
// fallback API key is only tried after the primary key is rejected with 401.
type MarketplaceConfig struct {
	Name           string `json:"name" envconfig:"SELLERDESK_MARKETPLACE_NAME"`
	ReviewURL      string `json:"review_url" envconfig:"SELLERDESK_MARKETPLACE_REVIEW_URL"`
	QuestionURL    string `json:"question_url" envconfig:"SELLERDESK_MARKETPLACE_QUESTION_URL"`
	ChatURL        string `json:"chat_url" envconfig:"SELLERDESK_MARKETPLACE_CHAT_URL"`
	APIKey         string `json:"api_key" envconfig:"SELLERDESK_MARKETPLACE_API_KEY"`
	FallbackAPIKey string `json:"fallback_api_key" envconfig:"SELLERDESK_MARKETPLACE_FALLBACK_API_KEY"`
	TimeoutSec     int    `json:"timeout_sec" envconfig:"SELLERDESK_MARKETPLACE_TIMEOUT_SEC"`
}

// SyncConfig bounds the polling loop: how often passes run, how hard they
// hit the marketplace, and how re-ingestion interacts with local replies.
type SyncConfig struct {
	IntervalMin           int `json:"interval_min" envconfig:"SELLERDESK_SYNC_INTERVAL_MIN"`
	PageSize              int `json:"page_size" envconfig:"SELLERDESK_SYNC_PAGE_SIZE"`
	InterPageDelayMs      int `json:"inter_page_delay_ms" envconfig:"SELLERDESK_SYNC_INTER_PAGE_DELAY_MS"`
	OverlapSec            int `json:"overlap_sec" envconfig:"SELLERDESK_SYNC_OVERLAP_SEC"`
	CallsPerMinute        int `json:"calls_per_minute" envconfig:"SELLERDESK_SYNC_CALLS_PER_MINUTE"`
	TokenWaitSec          int `json:"token_wait_sec" envconfig:"SELLERDESK_SYNC_TOKEN_WAIT_SEC"`
	LockTTLSec            int `json:"lock_ttl_sec" envconfig:"SELLERDESK_SYNC_LOCK_TTL_SEC"`
	ReplyPendingWindowMin int `json:"reply_pending_window_min" envconfig:"SELLERDESK_SYNC_REPLY_PENDING_WINDOW_MIN"`
	MaxRetries            int `json:"max_retries" envconfig:"SELLERDESK_SYNC_MAX_RETRIES"`
}

// LinkConfig carries the probabilistic-link signal weights and visibility
// thresholds. The weights are heuristic defaults pending calibration against
// labeled outcomes; treat them as tunable, not a contract.
type LinkConfig struct {
	WindowDays          int     `json:"window_days" envconfig:"SELLERDESK_LINK_WINDOW_DAYS"`
	ProductWeight       float64 `json:"product_weight" envconfig:"SELLERDESK_LINK_PRODUCT_WEIGHT"`
	TimeWeight          float64 `json:"time_weight" envconfig:"SELLERDESK_LINK_TIME_WEIGHT"`
	NameWeight          float64 `json:"name_weight" envconfig:"SELLERDESK_LINK_NAME_WEIGHT"`
	TextWeight          float64 `json:"text_weight" envconfig:"SELLERDESK_LINK_TEXT_WEIGHT"`
	NameSimilarityFloor float64 `json:"name_similarity_floor" envconfig:"SELLERDESK_LINK_NAME_SIMILARITY_FLOOR"`
	ActionThreshold     float64 `json:"action_threshold" envconfig:"SELLERDESK_LINK_ACTION_THRESHOLD"`
	HintThreshold       float64 `json:"hint_threshold" envconfig:"SELLERDESK_LINK_HINT_THRESHOLD"`
}

// SLAConfig maps question intents to response targets in minutes.
type SLAConfig struct {
	SafetyMin          int `json:"safety_min" envconfig:"SELLERDESK_SLA_SAFETY_MIN"`
	DefectMin          int `json:"defect_min" envconfig:"SELLERDESK_SLA_DEFECT_MIN"`
	DeliveryMin        int `json:"delivery_min" envconfig:"SELLERDESK_SLA_DELIVERY_MIN"`
	SizingMin          int `json:"sizing_min" envconfig:"SELLERDESK_SLA_SIZING_MIN"`
	UsageMin           int `json:"usage_min" envconfig:"SELLERDESK_SLA_USAGE_MIN"`
	GeneralMin         int `json:"general_min" envconfig:"SELLERDESK_SLA_GENERAL_MIN"`
	ChatMin            int `json:"chat_min" envconfig:"SELLERDESK_SLA_CHAT_MIN"`
	EscalationAgeHours int `json:"escalation_age_hours" envconfig:"SELLERDESK_SLA_ESCALATION_AGE_HOURS"`
}

// GuardrailConfig bounds reply length and lets operators extend the banned
// phrase table per category without a redeploy.
type GuardrailConfig struct {
	MinLength    int                 `json:"min_length" envconfig:"SELLERDESK_GUARDRAIL_MIN_LENGTH"`
	MaxLength    int                 `json:"max_length" envconfig:"SELLERDESK_GUARDRAIL_MAX_LENGTH"`
	ExtraPhrases map[string][]string `json:"extra_phrases"`
}

type QueueConfig struct {
	SyncQueue       string `json:"sync_queue" envconfig:"SELLERDESK_QUEUE_SYNC"`
	IndexQueue      string `json:"index_queue" envconfig:"SELLERDESK_QUEUE_INDEX"`
	WebhookQueue    string `json:"webhook_queue" envconfig:"SELLERDESK_QUEUE_WEBHOOK"`
	EscalationQueue string `json:"escalation_queue" envconfig:"SELLERDESK_QUEUE_ESCALATION"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"SELLERDESK_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"SELLERDESK_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"SELLERDESK_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"SELLERDESK_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string            `json:"project_name" envconfig:"SELLERDESK_PROJECT_NAME"`
	Sellers      []string          `json:"sellers" envconfig:"SELLERDESK_SELLERS"`
	Server       ServerConfig      `json:"server"`
	DataSource   DataSourceConfig  `json:"data_source"`
	Redis        RedisConfig       `json:"redis"`
	TypeSense    TypeSenseConfig   `json:"typesense"`
	TypeSenseKey string            `json:"type_sense_key"`
	Marketplace  MarketplaceConfig `json:"marketplace"`
	Sync         SyncConfig        `json:"sync"`
	Link         LinkConfig        `json:"link"`
	SLA          SLAConfig         `json:"sla"`
	Guardrail    GuardrailConfig   `json:"guardrail"`
	Queue        QueueConfig       `json:"queue"`
	Notification Notification      `json:"notification"`
	RateLimit    RateLimitConfig   `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("sellerdesk", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called sellerdesk.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "SellerDesk Server"
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Marketplace.Name == "" {
		cnf.Marketplace.Name = "default"
	}
	if cnf.Marketplace.TimeoutSec == 0 {
		cnf.Marketplace.TimeoutSec = 30
	}

	cnf.Sync.applyDefaults()
	cnf.Link.applyDefaults()
	cnf.SLA.applyDefaults()

	if cnf.Guardrail.MinLength == 0 {
		cnf.Guardrail.MinLength = 2
	}
	if cnf.Guardrail.MaxLength == 0 {
		cnf.Guardrail.MaxLength = 1000
	}

	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = "sync_queue"
	}
	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = "index_queue"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "webhook_queue"
	}
	if cnf.Queue.EscalationQueue == "" {
		cnf.Queue.EscalationQueue = "escalation_queue"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (s *SyncConfig) applyDefaults() {
	if s.IntervalMin == 0 {
		s.IntervalMin = 5
	}
	if s.PageSize == 0 {
		s.PageSize = 50
	}
	if s.InterPageDelayMs == 0 {
		s.InterPageDelayMs = 500
	}
	if s.OverlapSec == 0 {
		s.OverlapSec = 2
	}
	if s.CallsPerMinute == 0 {
		s.CallsPerMinute = 30
	}
	if s.TokenWaitSec == 0 {
		s.TokenWaitSec = 5
	}
	if s.LockTTLSec == 0 {
		s.LockTTLSec = 600
	}
	if s.ReplyPendingWindowMin == 0 {
		s.ReplyPendingWindowMin = 180
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 4
	}
}

func (l *LinkConfig) applyDefaults() {
	if l.WindowDays == 0 {
		l.WindowDays = 45
	}
	if l.ProductWeight == 0 {
		l.ProductWeight = 0.35
	}
	if l.TimeWeight == 0 {
		l.TimeWeight = 0.25
	}
	if l.NameWeight == 0 {
		l.NameWeight = 0.25
	}
	if l.TextWeight == 0 {
		l.TextWeight = 0.15
	}
	if l.NameSimilarityFloor == 0 {
		l.NameSimilarityFloor = 0.8
	}
	if l.ActionThreshold == 0 {
		l.ActionThreshold = 0.85
	}
	if l.HintThreshold == 0 {
		l.HintThreshold = 0.65
	}
}

func (s *SLAConfig) applyDefaults() {
	if s.SafetyMin == 0 {
		s.SafetyMin = 30
	}
	if s.DefectMin == 0 {
		s.DefectMin = 120
	}
	if s.DeliveryMin == 0 {
		s.DeliveryMin = 240
	}
	if s.SizingMin == 0 {
		s.SizingMin = 360
	}
	if s.UsageMin == 0 {
		s.UsageMin = 480
	}
	if s.GeneralMin == 0 {
		s.GeneralMin = 720
	}
	if s.ChatMin == 0 {
		s.ChatMin = 60
	}
	if s.EscalationAgeHours == 0 {
		s.EscalationAgeHours = 48
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
