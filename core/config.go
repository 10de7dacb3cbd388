package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"local"`
	TelegramApiKey string `yaml:"telegram_api_key" env:"BOT_TOKEN" env-default:""`
	GigaChat       struct {
		AuthKey string `yaml:"auth_key" env:"GIGA_AUTH_KEY" env-default:""`
		Scope   string `yaml:"scope" env:"GIGA_SCOPE" env-default:"GIGACHAT_API_PERS"`
		Model   string `yaml:"model" env:"GIGA_MODEL" env-default:"GigaChat"`
		AuthURL string `yaml:"auth_url" env-default:"https://ngw.devices.sberbank.ru:9443/api/v2/oauth"`
		ChatURL string `yaml:"chat_url" env-default:"https://gigachat.devices.sberbank.ru/api/v1/chat/completions"`
		// The reference environment talks to an endpoint whose certificate
		// the system store does not know; verification stays on unless
		// explicitly switched off.
		InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"GIGA_INSECURE" env-default:"false"`
	} `yaml:"gigachat"`
	Kandinsky struct {
		ApiKey     string        `yaml:"api_key" env:"KANDINSKYAPIKEY" env-default:""`
		SecretKey  string        `yaml:"secret_key" env:"KANDINSKYSECRETKEY" env-default:""`
		BaseURL    string        `yaml:"base_url" env-default:"https://api-key.fusionbrain.ai"`
		PollBudget time.Duration `yaml:"poll_budget" env:"KANDINSKY_POLL_BUDGET" env-default:"5m"`
	} `yaml:"kandinsky"`
	CooldownSeconds int `yaml:"cooldown_seconds" env:"COOLDOWN_SECONDS" env-default:"3600"`
	Mongo           struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:""`
	} `yaml:"mongo"`
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

var instance *Config
var once sync.Once

func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
		}
	})
	return instance, err
}

func MustLoad(path string) *Config {
	conf, err := GetConfig(path)
	if err != nil {
		panic(err)
	}
	if conf.TelegramApiKey == "" {
		panic("config: telegram_api_key is required")
	}
	if conf.GigaChat.AuthKey == "" {
		panic("config: gigachat auth_key is required")
	}
	return conf
}
