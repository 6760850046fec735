package rocketsim

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const configEnv = "ROCKETSIM_CONFIG"

var (
	cfgOnce sync.Once
	config  _rsconfig
)

// _rsconfig is a "hidden" struct, just use `rocketsimConfig`
type _rsconfig struct {
	outputDir       string
	rtol, atol      float64
	maxStep         float64
	soundingTimeout time.Duration
}

func defaultConfig() _rsconfig {
	return _rsconfig{outputDir: ".", rtol: 1e-6, atol: 1e-6, maxStep: 1, soundingTimeout: 30 * time.Second}
}

// rocketsimConfig returns the library configuration. When ROCKETSIM_CONFIG is
// set, it must name a directory holding a conf.toml file.
func rocketsimConfig() _rsconfig {
	cfgOnce.Do(func() {
		config = defaultConfig()
		confPath := os.Getenv(configEnv)
		if confPath == "" {
			return
		}
		v := viper.New()
		v.SetConfigName("conf")
		v.SetConfigType("toml")
		v.AddConfigPath(confPath)
		if err := v.ReadInConfig(); err != nil {
			panic(fmt.Errorf("%s/conf.toml not found: %s", confPath, err))
		}
		config = configFrom(v, config)
	})
	return config
}

// configFrom overrides the provided defaults with whatever is set in v.
func configFrom(v *viper.Viper, c _rsconfig) _rsconfig {
	if v.IsSet("general.output_path") {
		c.outputDir = v.GetString("general.output_path")
	}
	if v.IsSet("integrator.rtol") {
		c.rtol = v.GetFloat64("integrator.rtol")
	}
	if v.IsSet("integrator.atol") {
		c.atol = v.GetFloat64("integrator.atol")
	}
	if v.IsSet("integrator.max_step") {
		c.maxStep = v.GetFloat64("integrator.max_step")
	}
	if v.IsSet("sounding.timeout") {
		c.soundingTimeout = v.GetDuration("sounding.timeout")
	}
	return c
}
