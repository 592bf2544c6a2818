package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/geopoly/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("geopoly-api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Geometry.MaxRadius != 50000 {
		t.Errorf("expected max radius 50000, got %v", cfg.Geometry.MaxRadius)
	}
	if cfg.Geometry.DefaultPoints != 64 {
		t.Errorf("expected 64 points, got %d", cfg.Geometry.DefaultPoints)
	}
	if cfg.Geometry.PrimaryTimeout != 3*time.Second {
		t.Errorf("expected 3s primary timeout, got %v", cfg.Geometry.PrimaryTimeout)
	}
	if cfg.Performance.ArtificialDelay != 5*time.Second {
		t.Errorf("expected 5s artificial delay, got %v", cfg.Performance.ArtificialDelay)
	}
	if cfg.Cache.CoordDecimals != 6 || cfg.Cache.RadiusDecimals != 2 {
		t.Errorf("unexpected key precision %d/%d", cfg.Cache.CoordDecimals, cfg.Cache.RadiusDecimals)
	}
	if cfg.Telemetry.ServiceName != "geopoly-api" {
		t.Errorf("expected service name from argument, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GEOPOLY_GEOMETRY_MAX_RADIUS", "1000")
	t.Setenv("GEOPOLY_PERFORMANCE_ARTIFICIAL_DELAY", "250ms")
	t.Setenv("GEOPOLY_GEOMETRY_POLAR_AREA_METHOD", "lambert")

	cfg, err := config.Load("geopoly-api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Geometry.MaxRadius != 1000 {
		t.Errorf("expected max radius 1000, got %v", cfg.Geometry.MaxRadius)
	}
	if cfg.Performance.ArtificialDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Performance.ArtificialDelay)
	}
	if cfg.Geometry.PolarAreaMethod != "lambert" {
		t.Errorf("expected lambert, got %q", cfg.Geometry.PolarAreaMethod)
	}
}

func TestLoad_InvalidPolarMethod(t *testing.T) {
	t.Setenv("GEOPOLY_GEOMETRY_POLAR_AREA_METHOD", "exact")

	_, err := config.Load("geopoly-api")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "geometry.polar_area_method") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.host", "geometry.max_radius", "geometry.default_points"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
