package config

import (
	"errors"
	"testing"
	"time"

	"github.com/wesleyorama2/loadcheck/internal/profile"
)

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set(KeyScenario, "constant_arrival_rate")

	s, err := Load(v)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if s.Environment != "staging" {
		t.Errorf("Expected environment staging, got %q", s.Environment)
	}
	if s.Method != "GET" {
		t.Errorf("Expected method GET, got %q", s.Method)
	}
	if s.Payload != "{}" || s.PayloadType != PayloadJSON {
		t.Errorf("Unexpected payload defaults: %q %q", s.Payload, s.PayloadType)
	}
	if s.LoginMode || !s.PerformLogin {
		t.Errorf("Unexpected login defaults: mode=%v perform=%v", s.LoginMode, s.PerformLogin)
	}
	if s.TargetRPS != 29 || s.TargetResponseMs != 1000 {
		t.Errorf("Unexpected targets: %v %v", s.TargetRPS, s.TargetResponseMs)
	}
	if s.RequestTimeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", s.RequestTimeout)
	}
	if s.Summary != "summary.json" {
		t.Errorf("Expected summary.json, got %q", s.Summary)
	}
	if !s.SetupLogin() {
		t.Error("Expected a setup login by default")
	}
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("choose_scenario", "ramping_arrival_rate")
	t.Setenv("choose_sub_scenario", "spike")
	t.Setenv("choose_env", "production")
	t.Setenv("API_ENDPOINT", "v1/orders")
	t.Setenv("METHOD", "post")
	t.Setenv("LOGIN_MODE", "true")
	t.Setenv("TARGET_RPS", "40")
	t.Setenv("CONSTANT_VUS", "12")

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if s.Scenario != "ramping_arrival_rate" || s.SubScenario != "spike" {
		t.Errorf("Unexpected scenario: %q/%q", s.Scenario, s.SubScenario)
	}
	if s.Environment != "production" || s.Endpoint != "v1/orders" {
		t.Errorf("Unexpected target: %q %q", s.Environment, s.Endpoint)
	}
	if s.Method != "POST" {
		t.Errorf("Expected method to be upper-cased, got %q", s.Method)
	}
	if !s.LoginMode || s.SetupLogin() {
		t.Errorf("Login mode should disable the setup login")
	}
	if s.TargetRPS != 40 || s.ConstantVUs != 12 {
		t.Errorf("Unexpected numbers: rps=%v vus=%d", s.TargetRPS, s.ConstantVUs)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("LOADCHECK_SCENARIO", "constant_arrival_rate")
	t.Setenv("choose_scenario", "ramping_arrival_rate")

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if s.Scenario != "constant_arrival_rate" {
		t.Errorf("Expected LOADCHECK_SCENARIO to take precedence, got %q", s.Scenario)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	v := NewViper()
	v.Set(KeyScenario, "soak")
	v.Set(KeySubScenario, "marathon")
	v.Set(KeyMethod, "DELETE")
	v.Set(KeyTargetRPS, 0)
	v.Set(KeyConstantVUs, -1)

	_, err := Load(v)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}

	paths := map[string]bool{}
	for _, e := range verrs {
		paths[e.Path] = true
	}
	for _, want := range []string{KeyScenario, KeySubScenario, KeyMethod, KeyTargetRPS, KeyConstantVUs} {
		if !paths[want] {
			t.Errorf("Expected a validation error for %s, got %v", want, verrs)
		}
	}
	if paths[KeyTargetResponseMs] {
		t.Errorf("Did not expect an error for %s", KeyTargetResponseMs)
	}
}

func TestSettings_Descriptor(t *testing.T) {
	s := &Settings{
		Scenario:         "constant_arrival_rate",
		SubScenario:      "steady_stability_test",
		TargetRPS:        29,
		TargetResponseMs: 1000,
	}

	d := s.Descriptor()
	if d.Name != profile.ConstantArrivalRate || d.SubScenario != profile.SubSteadyStability {
		t.Errorf("Unexpected descriptor: %+v", d)
	}
	if d.ConstantVUHint != 70 || s.GivenVUs() != 70 {
		t.Errorf("Expected suggested 70 VUs, got hint=%d given=%d", d.ConstantVUHint, s.GivenVUs())
	}

	s.ConstantVUs = 9
	if s.Descriptor().ConstantVUHint != 9 || s.GivenVUs() != 9 {
		t.Errorf("Expected configured VUs to win")
	}
}
