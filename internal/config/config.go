package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/merchware/repricer/internal/classify"
	"github.com/merchware/repricer/internal/pricing"
	pkgconfig "github.com/merchware/repricer/pkg/config"
)

// Input source modes.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Config holds the full runtime configuration for one repricer run.
// Defaults reproduce the reference deployment; every pricing and
// classification constant is deployment-tunable.
type Config struct {
	ServiceName string
	Env         string // "dev", "uat", "prod"
	LogLevel    string

	Source      string // "local" or "remote"
	InputPath   string
	InputURL    string
	HTTPTimeout time.Duration
	OutputDir   string

	// VATRate applies when either toggle below is set; zero disables both.
	VATRate      float64
	VATNetPrices bool // divide the gross reference price by (1+VATRate)
	VATScaleFees bool // scale the classifier's other-fee base by (1+VATRate)

	SampleSize int
	EmitFull   bool // also emit the full (every product) instruction file

	MetafieldPrefix string // header prefix of the advertised-from column
	DraftStatus     string // lifecycle marker written for unpriceable products

	Classifier classify.Params
	Pricing    pricing.Tables
}

// Load reads configuration from the environment, loading .env silently if
// present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "repricer"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),

		Source:      strings.ToLower(pkgconfig.GetEnv("SOURCE", SourceLocal)),
		InputPath:   pkgconfig.GetEnv("INPUT_PATH", "export.csv"),
		InputURL:    pkgconfig.GetEnv("INPUT_URL", ""),
		HTTPTimeout: pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		OutputDir:   pkgconfig.GetEnv("OUTPUT_DIR", "out"),

		VATRate:      pkgconfig.GetEnvFloat("VAT_RATE", 0),
		VATNetPrices: pkgconfig.GetEnvBool("VAT_NET_PRICES", false),
		VATScaleFees: pkgconfig.GetEnvBool("VAT_SCALE_FEES", false),

		SampleSize: pkgconfig.GetEnvInt("SAMPLE_SIZE", 12),
		EmitFull:   pkgconfig.GetEnvBool("EMIT_FULL", false),

		MetafieldPrefix: pkgconfig.GetEnv("METAFIELD_PREFIX", "Metafield: custom.as_low_as"),
		DraftStatus:     pkgconfig.GetEnv("DRAFT_STATUS", "draft"),
	}

	cfg.Classifier = classify.Params{
		DMax:         pkgconfig.GetEnvFloat("D_MAX", 0.51),
		ShipCost:     pkgconfig.GetEnvFloat("SHIP_COST", 12.9),
		CustShip:     pkgconfig.GetEnvFloat("CUST_SHIP", 8.5),
		AffRate:      pkgconfig.GetEnvFloat("AFF_RATE", 0.12),
		OtherRate:    pkgconfig.GetEnvFloat("OTHER_RATE", 0.0455),
		VATRate:      cfg.VATRate,
		ScaleFeesVAT: cfg.VATScaleFees,
		GatewayTags:  splitList(pkgconfig.GetEnv("USED_GATEWAY_TAGS", "used,preloved,pre-owned,open-box")),
		ExcludeTag:   pkgconfig.GetEnv("EXCLUDE_TAG", "repricer-exclude"),
	}

	cfg.Pricing = pricing.Tables{
		Standard: pricing.StandardParams{
			DMax:     cfg.Classifier.DMax,
			Mu0:      pkgconfig.GetEnvFloat("STD_MU0", 0.75),
			BetaDisc: pkgconfig.GetEnvFloat("STD_BETA_DISC", 0),
			GammaM:   pkgconfig.GetEnvFloat("STD_GAMMA_M", 0.23),
			Rho:      pkgconfig.GetEnvFloat("STD_RHO", 0.40),
			DRef:     pkgconfig.GetEnvFloat("STD_D_REF", 0.91),
			MRef:     pkgconfig.GetEnvFloat("STD_M_REF", 25000),
		},
		Used: pricing.CostPlusParams{
			Alpha: pkgconfig.GetEnvFloat("USED_ALPHA", 0.25),
			Beta:  pkgconfig.GetEnvFloat("USED_BETA", 1.20),
			Gamma: pkgconfig.GetEnvFloat("USED_GAMMA", 0.20),
			N:     pkgconfig.GetEnvFloat("USED_N", 35),
			K0:    pkgconfig.GetEnvFloat("USED_K0", 200),
			K:     pkgconfig.GetEnvFloat("USED_K", 200),
		},
		LowMargin: pricing.CostPlusParams{
			Alpha: pkgconfig.GetEnvFloat("LM_ALPHA", 0.40),
			Beta:  pkgconfig.GetEnvFloat("LM_BETA", 0.90),
			Gamma: pkgconfig.GetEnvFloat("LM_GAMMA", 0),
			N:     pkgconfig.GetEnvFloat("LM_N", 35),
			K0:    pkgconfig.GetEnvFloat("LM_K0", 500),
			K:     pkgconfig.GetEnvFloat("LM_K", 300),
		},
	}

	return cfg
}

// Validate enforces the fatal startup conditions. It returns an error
// describing the first problem found; the caller exits non-zero on any.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceLocal:
		if c.InputPath == "" {
			return fmt.Errorf("SOURCE=local requires INPUT_PATH")
		}
		if _, err := os.Stat(c.InputPath); err != nil {
			return fmt.Errorf("input not found at %q: %w", c.InputPath, err)
		}
	case SourceRemote:
		if c.InputURL == "" {
			return fmt.Errorf("SOURCE=remote requires INPUT_URL")
		}
	default:
		return fmt.Errorf("unknown SOURCE %q (want %q or %q)", c.Source, SourceLocal, SourceRemote)
	}

	if c.Classifier.DMax < 0 || c.Classifier.DMax >= 1 {
		return fmt.Errorf("D_MAX must be in [0,1), got %v", c.Classifier.DMax)
	}
	if c.VATRate < 0 {
		return fmt.Errorf("VAT_RATE must be non-negative, got %v", c.VATRate)
	}
	if (c.VATNetPrices || c.VATScaleFees) && c.VATRate == 0 {
		return fmt.Errorf("VAT normalization enabled but VAT_RATE is zero")
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("SAMPLE_SIZE must be non-negative, got %d", c.SampleSize)
	}
	if c.Pricing.Standard.MRef <= 0 {
		return fmt.Errorf("STD_M_REF must be positive, got %v", c.Pricing.Standard.MRef)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
