package config

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	DatabaseURL string `env:"DATABASE_URL,required"`
	CORS        CORS
	Auth        Auth `envPrefix:"AUTH_"`

	Paypal Paypal `envPrefix:"PAYPAL_"`
}

type Paypal struct {
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET,required"`
	Live         bool   `env:"LIVE" envDefault:"false"`
}

// BaseApiURL selects the sandbox or production endpoint.
func (p *Paypal) BaseApiURL() string {
	if p.Live {
		return paypalLiveURL
	}
	return paypalSandboxURL
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET,required"`
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

type CORS struct {
	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}
