package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:polar-bridge.db"`

	Polar Polar `envPrefix:"POLAR_"`
	Auth  Auth  `envPrefix:"AUTH_"`
	Email Email `envPrefix:"EMAIL_"`
}

type Polar struct {
	// Server selects the default API host: "sandbox" or "production".
	Server            string `env:"SERVER" envDefault:"sandbox"`
	BaseApiURL        string `env:"BASE_API_URL"`
	OrganizationToken string `env:"ORGANIZATION_TOKEN"`
	WebhookSecret     string `env:"WEBHOOK_SECRET"`
	WebhookPath       string `env:"WEBHOOK_PATH" envDefault:"/polar/events"`
	// FreeProductID is the product whose subscription changes never send email.
	FreeProductID string `env:"FREE_PRODUCT_ID"`
}

const (
	polarSandboxURL    = "https://sandbox-api.polar.sh"
	polarProductionURL = "https://api.polar.sh"
)

// APIURL returns the explicit base url, falling back to the host for Server.
func (p Polar) APIURL() string {
	if p.BaseApiURL != "" {
		return p.BaseApiURL
	}
	if p.Server == "production" {
		return polarProductionURL
	}
	return polarSandboxURL
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Email struct {
	PostmarkToken string `env:"POSTMARK_TOKEN"`
	From          string `env:"FROM" envDefault:"billing@localhost"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
