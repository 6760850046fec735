package rocketsim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	if c.outputDir != "." || c.rtol != 1e-6 || c.atol != 1e-6 || c.maxStep != 1 || c.soundingTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestConfigFrom(t *testing.T) {
	v := viper.New()
	v.Set("general.output_path", "/tmp/flights")
	v.Set("integrator.rtol", 1e-9)
	v.Set("integrator.max_step", 0.5)
	v.Set("sounding.timeout", "5s")
	c := configFrom(v, defaultConfig())
	if c.outputDir != "/tmp/flights" {
		t.Fatalf("output dir = %s", c.outputDir)
	}
	if c.rtol != 1e-9 || c.maxStep != 0.5 {
		t.Fatalf("integrator = %g %g", c.rtol, c.maxStep)
	}
	if c.atol != 1e-6 {
		t.Fatal("unset atol should keep its default")
	}
	if c.soundingTimeout != 5*time.Second {
		t.Fatalf("sounding timeout = %s", c.soundingTimeout)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := "[general]\noutput_path = \"out\"\n\n[integrator]\natol = 1e-8\n"
	if err := os.WriteFile(filepath.Join(dir, "conf.toml"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigName("conf")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	c := configFrom(v, defaultConfig())
	if c.outputDir != "out" || c.atol != 1e-8 || c.rtol != 1e-6 {
		t.Fatalf("unexpected config: %+v", c)
	}
}
