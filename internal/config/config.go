package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses token lifetimes
)

// insecureJWTDefault is the fallback signing secret. It exists so a fresh
// checkout can boot without a .env file, but it must be overridden in any
// real deployment. Load logs a warning when it is in use.
const insecureJWTDefault = "textilelaunch-secret-key-change-in-production"

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// lifetimes, ints for costs.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign JWTs
	JWTExpiresIn   time.Duration // signed-token lifetime (also the session lifetime)
	CipherSecret   string        // key-derivation input for the credential cipher
	CookieSecure   bool          // mark the session cookie Secure (HTTPS deployments)
	CookieSameSite string        // SameSite attribute: "none", "lax" or "strict"
	BcryptCost     int           // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config. Database settings are required and enforced by must(); auth
// settings fall back to defaults so that local development works out of
// the box.
func Load() Config {
	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "3001"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    envStr("JWT_SECRET", insecureJWTDefault),
		JWTExpiresIn: envDur("JWT_EXPIRES_IN", 7*24*time.Hour),
		CookieSecure: envBool("COOKIE_SECURE", false),
		BcryptCost:   envInt("BCRYPT_COST", 10),
	}

	// The cipher secret prefers the dedicated variable and falls back to the
	// general session secret so older deployments keep decrypting.
	cfg.CipherSecret = os.Getenv("AFFILIATE_CREDENTIALS_SECRET")
	if cfg.CipherSecret == "" {
		cfg.CipherSecret = envStr("SESSION_SECRET", "textilelaunch-default")
	}

	// Secure cross-site deployments need SameSite=None; plain HTTP gets Lax.
	def := "lax"
	if cfg.CookieSecure {
		def = "none"
	}
	cfg.CookieSameSite = envStr("COOKIE_SAMESITE", def)

	if cfg.JWTSecret == insecureJWTDefault {
		log.Println("WARNING: JWT_SECRET is not set; using the insecure built-in default")
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	// Accept bare day counts ("7") for compatibility with the old format.
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * 24 * time.Hour
	}
	return d
}
