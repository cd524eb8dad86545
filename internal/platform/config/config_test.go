package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testCartSecret = "0123456789abcdef0123456789abcdef"

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   testCartSecret,
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Environment != "local" {
		t.Errorf("expected default environment local, got %s", cfg.Server.Environment)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "wig-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "wig-dev" {
		t.Errorf("expected events project to default to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Storage.Backend != StorageBackendFirestore {
		t.Errorf("expected firestore backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Commerce.TaxRateBasisPoints != 700 || cfg.Commerce.FlatShipping != 500 {
		t.Errorf("unexpected pricing defaults: %+v", cfg.Commerce)
	}
	if cfg.Commerce.DefaultCurrency != "USD" {
		t.Errorf("unexpected default currency %s", cfg.Commerce.DefaultCurrency)
	}
	if cfg.CartToken.TTL != defaultCartTokenTTL {
		t.Errorf("unexpected cart token ttl %s", cfg.CartToken.TTL)
	}
	if cfg.Events.Backend != EventsBackendLog {
		t.Errorf("expected log events backend, got %s", cfg.Events.Backend)
	}
	if len(cfg.Events.KafkaBrokers) != 0 {
		t.Errorf("expected no kafka brokers, got %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Idempotency.Backend != IdempotencyBackendMemory {
		t.Errorf("expected memory idempotency backend, got %s", cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                 "9090",
		"API_SERVER_IDLE_TIMEOUT":         "2m",
		"API_ENVIRONMENT":                 "PROD",
		"API_FIREBASE_PROJECT_ID":         "wig-prod",
		"API_FIRESTORE_PROJECT_ID":        "wig-fire",
		"API_COMMERCE_TAX_RATE_BPS":       "825",
		"API_COMMERCE_FLAT_SHIPPING":      "0",
		"API_COMMERCE_DEFAULT_CURRENCY":   "eur",
		"API_CART_TOKEN_SECRET":           "secret://carts/signing",
		"API_CART_TOKEN_TTL":              "72h",
		"API_EVENTS_BACKEND":              "kafka",
		"API_EVENTS_TOPIC":                "orders",
		"API_EVENTS_KAFKA_BROKERS":        "kafka-1:9092, kafka-2:9092",
		"API_EVENTS_BREAKER_MAX_FAILURES": "3",
		"API_REDIS_ADDR":                  "redis:6379",
		"API_REDIS_PASSWORD":              "sm://redis/password",
		"API_REDIS_DB":                    "2",
		"API_IDEMPOTENCY_BACKEND":         "redis",
		"API_IDEMPOTENCY_HEADER":          "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":             "48h",
	}

	secrets := map[string]string{
		"secret://carts/signing":  testCartSecret,
		"secret://redis/password": "redis-pass",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Server.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Server.Environment)
	}
	if cfg.Firestore.ProjectID != "wig-fire" || cfg.Events.ProjectID != "wig-fire" {
		t.Errorf("unexpected projects firestore=%s events=%s", cfg.Firestore.ProjectID, cfg.Events.ProjectID)
	}
	if cfg.Commerce.TaxRateBasisPoints != 825 || cfg.Commerce.FlatShipping != 0 {
		t.Errorf("unexpected pricing: %+v", cfg.Commerce)
	}
	if cfg.Commerce.DefaultCurrency != "EUR" {
		t.Errorf("expected upper-cased currency, got %s", cfg.Commerce.DefaultCurrency)
	}
	if cfg.CartToken.Secret != testCartSecret {
		t.Errorf("expected resolved cart token secret")
	}
	if cfg.CartToken.TTL != 72*time.Hour {
		t.Errorf("unexpected cart token ttl %s", cfg.CartToken.TTL)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Events.BreakerMaxFailures != 3 {
		t.Errorf("unexpected breaker max failures %d", cfg.Events.BreakerMaxFailures)
	}
	if cfg.Redis.Password != "redis-pass" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nexport API_FIREBASE_PROJECT_ID=wig-dot\nAPI_CART_TOKEN_SECRET=\"" + testCartSecret + "\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "wig-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.CartToken.Secret != testCartSecret {
		t.Errorf("expected quoted secret to be unwrapped, got %q", cfg.CartToken.Secret)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   testCartSecret,
	}
	if _, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env"))); err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, field := range validation.Fields() {
		fields[field] = true
	}
	if !fields["Firebase.ProjectID"] || !fields["CartToken.Secret"] {
		t.Fatalf("unexpected missing fields %v", validation.Fields())
	}
}

func TestLoadRejectsBackendMisconfiguration(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"unknown storage", map[string]string{"API_STORAGE_BACKEND": "postgres"}, "Storage.Backend"},
		{"kafka without brokers", map[string]string{"API_EVENTS_BACKEND": "kafka"}, "Events.KafkaBrokers"},
		{"unknown events", map[string]string{"API_EVENTS_BACKEND": "sns"}, "Events.Backend"},
		{"redis without addr", map[string]string{"API_IDEMPOTENCY_BACKEND": "redis", "API_REDIS_ADDR": " "}, "Redis.Addr"},
		{"tax out of range", map[string]string{"API_COMMERCE_TAX_RATE_BPS": "20000"}, "Commerce.TaxRateBasisPoints"},
		{"short secret", map[string]string{"API_CART_TOKEN_SECRET": "short"}, "CartToken.Secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{
				"API_FIREBASE_PROJECT_ID": "wig-dev",
				"API_CART_TOKEN_SECRET":   testCartSecret,
			}
			for k, v := range tc.env {
				env[k] = v
			}
			_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, field := range validation.Fields() {
				if field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s in %v", tc.field, validation.Fields())
			}
		})
	}
}

func TestLoadMemoryBackendSkipsFirestoreProject(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   testCartSecret,
		"API_STORAGE_BACKEND":     "memory",
		"API_STORAGE_SEED_DEMO":   "yes",
		"API_STORAGE_DEMO_USER":   "demo-buyer",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Backend != StorageBackendMemory || !cfg.Storage.SeedDemo || cfg.Storage.DemoUser != "demo-buyer" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   testCartSecret,
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Redis.Password")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "wig-dev",
		"API_CART_TOKEN_SECRET":   testCartSecret,
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Redis.Password" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Redis.Password"),
		WithPanicOnMissingSecrets(),
	)
}
