package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jrockway/nixie-clock/control/gpio"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"periph.io/x/conn/v3/physic"
)

// config is the bring-up configuration.  It comes from an optional .nixie-clock.{yaml,toml,json}
// file and NIXIE_* environment variables.
type config struct {
	Chip         string
	PinSet       int
	PinAdv       int
	PinPower     int // negative to run without power-fail sensing
	StorePath    string
	SPISpeed     physic.Frequency
	Subtick      time.Duration
	SeedFromHost bool
	Location     *time.Location
}

func loadConfig() (*config, error) {
	viper.SetDefault("gpio_chip", gpio.DefaultChip)
	viper.SetDefault("pin_set", gpio.DefaultPinSet)
	viper.SetDefault("pin_adv", gpio.DefaultPinAdv)
	viper.SetDefault("pin_power", gpio.DefaultPinPower)
	viper.SetDefault("store_path", "~/.nixie-clock")
	viper.SetDefault("spi_hz", 1000000)
	viper.SetDefault("subtick", "32us")
	viper.SetDefault("seed_from_host", true)
	viper.SetDefault("time_zone", "Local")
	viper.SetConfigName(".nixie-clock")
	viper.SetEnvPrefix("NIXIE")
	viper.AutomaticEnv()

	if override := os.Getenv("NIXIE_CONFIG_PATH"); override != "" {
		viper.AddConfigPath(override)
	}
	viper.AddConfigPath("/etc/nixie-clock")
	viper.AddConfigPath("./")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	loc, err := time.LoadLocation(viper.GetString("time_zone"))
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	storePath, err := homedir.Expand(viper.GetString("store_path"))
	if err != nil {
		return nil, fmt.Errorf("expand store path: %w", err)
	}
	subtick := viper.GetDuration("subtick")
	if subtick <= 0 {
		return nil, fmt.Errorf("subtick interval %v must be positive", subtick)
	}
	return &config{
		Chip:         viper.GetString("gpio_chip"),
		PinSet:       viper.GetInt("pin_set"),
		PinAdv:       viper.GetInt("pin_adv"),
		PinPower:     viper.GetInt("pin_power"),
		StorePath:    storePath,
		SPISpeed:     physic.Frequency(viper.GetInt64("spi_hz")) * physic.Hertz,
		Subtick:      subtick,
		SeedFromHost: viper.GetBool("seed_from_host"),
		Location:     loc,
	}, nil
}
