// Package config resolves run settings from flags, environment variables
// and the environments catalogue.
package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wesleyorama2/loadcheck/internal/profile"
)

// EnvPrefix is the prefix of every LOADCHECK_* variable.
const EnvPrefix = "LOADCHECK"

// Setting keys shared by flags, environment variables and viper.
const (
	KeyScenario         = "scenario"
	KeySubScenario      = "sub_scenario"
	KeyEnvironment      = "environment"
	KeyEndpoint         = "endpoint"
	KeyMethod           = "method"
	KeyPayload          = "payload"
	KeyPayloadType      = "payload_type"
	KeyLoginMode        = "login_mode"
	KeyPerformLogin     = "perform_login"
	KeyEmail            = "email"
	KeyPassword         = "password"
	KeyUserID           = "user_id"
	KeyTargetRPS        = "target_rps"
	KeyTargetResponseMs = "target_response_ms"
	KeyConstantVUs      = "constant_vus"
	KeyRequestTimeout   = "request_timeout"
	KeyEnvironmentsFile = "environments"
	KeySummary          = "summary"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
)

// envAliases maps keys to the variable names used by existing scripts.
var envAliases = map[string]string{
	KeyScenario:         "choose_scenario",
	KeySubScenario:      "choose_sub_scenario",
	KeyEnvironment:      "choose_env",
	KeyEndpoint:         "API_ENDPOINT",
	KeyMethod:           "METHOD",
	KeyPayload:          "PAYLOAD",
	KeyPayloadType:      "PAYLOAD_TYPE",
	KeyLoginMode:        "LOGIN_MODE",
	KeyPerformLogin:     "PERFORM_LOGIN",
	KeyEmail:            "USER_EMAIL",
	KeyPassword:         "USER_PASSWORD",
	KeyUserID:           "USER_ID",
	KeyTargetRPS:        "TARGET_RPS",
	KeyTargetResponseMs: "TARGET_RESPONSE_MS",
	KeyConstantVUs:      "CONSTANT_VUS",
}

// Settings holds everything a run needs.
type Settings struct {
	Scenario    string
	SubScenario string
	Environment string
	Endpoint    string
	Method      string
	Payload     string
	PayloadType string

	LoginMode    bool
	PerformLogin bool
	Email        string
	Password     string
	UserID       string

	TargetRPS        float64
	TargetResponseMs float64
	ConstantVUs      int
	RequestTimeout   time.Duration

	EnvironmentsFile string
	Summary          string
	LogLevel         string
	LogFormat        string
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyEnvironment, "staging")
	v.SetDefault(KeyMethod, http.MethodGet)
	v.SetDefault(KeyPayload, "{}")
	v.SetDefault(KeyPayloadType, PayloadJSON)
	v.SetDefault(KeyLoginMode, false)
	v.SetDefault(KeyPerformLogin, true)
	v.SetDefault(KeyTargetRPS, 29)
	v.SetDefault(KeyTargetResponseMs, 1000)
	v.SetDefault(KeyConstantVUs, 0)
	v.SetDefault(KeyRequestTimeout, 60*time.Second)
	v.SetDefault(KeySummary, "summary.json")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		// Explicit names disable the prefix, so both are listed.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), alias)
	}

	return v
}

// Load reads and validates settings from v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Scenario:         strings.TrimSpace(v.GetString(KeyScenario)),
		SubScenario:      strings.TrimSpace(v.GetString(KeySubScenario)),
		Environment:      strings.TrimSpace(v.GetString(KeyEnvironment)),
		Endpoint:         strings.TrimSpace(v.GetString(KeyEndpoint)),
		Method:           strings.ToUpper(strings.TrimSpace(v.GetString(KeyMethod))),
		Payload:          v.GetString(KeyPayload),
		PayloadType:      strings.TrimSpace(v.GetString(KeyPayloadType)),
		LoginMode:        v.GetBool(KeyLoginMode),
		PerformLogin:     v.GetBool(KeyPerformLogin),
		Email:            v.GetString(KeyEmail),
		Password:         v.GetString(KeyPassword),
		UserID:           strings.TrimSpace(v.GetString(KeyUserID)),
		TargetRPS:        v.GetFloat64(KeyTargetRPS),
		TargetResponseMs: v.GetFloat64(KeyTargetResponseMs),
		ConstantVUs:      v.GetInt(KeyConstantVUs),
		RequestTimeout:   v.GetDuration(KeyRequestTimeout),
		EnvironmentsFile: v.GetString(KeyEnvironmentsFile),
		Summary:          v.GetString(KeySummary),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Descriptor returns the profile descriptor for these settings. Call it
// only on validated settings.
func (s *Settings) Descriptor() profile.Descriptor {
	return profile.Descriptor{
		Name:             profile.Scenario(s.Scenario),
		SubScenario:      profile.SubScenario(s.SubScenario),
		TargetRPS:        s.TargetRPS,
		TargetResponseMs: s.TargetResponseMs,
		ConstantVUHint:   s.GivenVUs(),
	}
}

// GivenVUs is the VU count reported for the run: the configured constant
// VUs, or the sub-scenario suggestion.
func (s *Settings) GivenVUs() int {
	if s.ConstantVUs > 0 {
		return s.ConstantVUs
	}
	return profile.SuggestedVUs(profile.SubScenario(s.SubScenario))
}

// SetupLogin reports whether one login happens before the run starts.
func (s *Settings) SetupLogin() bool {
	return s.PerformLogin && !s.LoginMode
}
