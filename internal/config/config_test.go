package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hsv-tracker/internal/calibrate"
	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/morph"
	"hsv-tracker/internal/track"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	require.NoError(t, cfg.Validate())
	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("Validate() changed defaults (-before +after):\n%s", diff)
	}

	assert.Equal(t, track.DefaultBand(), cfg.Band())
	assert.Equal(t, track.DefaultSelector(640, 480), cfg.Band().For(cfg.Width, cfg.Height))
	assert.Equal(t, morph.DefaultParams(), cfg.MorphParams())
	assert.Equal(t, image.Rectangle{}, cfg.CalibrationROI())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := writeConfig(t, `{
		"workers": 0,
		"width": 320,
		"height": 240,
		"bounds": {"h_min": 50, "h_max": 70, "s_min": -4, "s_max": 999, "v_min": 150, "v_max": 256},
		"morph_mode": "aggressive",
		"calibration_mode": "sigma",
		"roi_x": 10, "roi_y": 20, "roi_size": 50,
		"serial_port": "/dev/ttyUSB0"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, hsv.Bounds{HMin: 50, HMax: 70, SMin: 0, SMax: 256, VMin: 150, VMax: 256}, cfg.Bounds)
	assert.Equal(t, morph.ModeAggressive, cfg.MorphParams().Mode)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	// Untouched fields keep defaults.
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.True(t, cfg.Display)

	sel := cfg.Band().For(cfg.Width, cfg.Height)
	assert.InDelta(t, 320*240/1.5, sel.MaxArea, 1e-9)
	// A larger frame than configured widens the band with it.
	sel = cfg.Band().For(1920, 1080)
	assert.InDelta(t, 1920*1080/1.5, sel.MaxArea, 1e-9)

	cal := cfg.CalibrationOptions()
	assert.Equal(t, calibrate.ModeSigma, cal.Mode)
	assert.Equal(t, image.Rect(10, 20, 60, 70), cal.ROI)
	assert.Equal(t, 5*time.Second, cal.Duration)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load(writeConfig(t, `{"workers": `))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"source": "rtsp"}`))
	assert.ErrorContains(t, err, "unknown source")
}

func TestCaptureOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadTimeoutMs = 500
	cfg.StatsIntervalSec = 5
	cfg.Verbose = true

	opts := cfg.CaptureOptions()
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 30*time.Millisecond, opts.RenderWait)
	assert.Equal(t, 5*time.Second, opts.StatsInterval)
	assert.True(t, opts.Pipeline.Verbose)
	assert.Equal(t, cfg.Band(), opts.Pipeline.Band)
}

func TestScreenRect(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.ScreenRect().Empty())

	cfg.ScreenX, cfg.ScreenY, cfg.ScreenW, cfg.ScreenH = 100, 50, 640, 480
	assert.Equal(t, image.Rect(100, 50, 740, 530), cfg.ScreenRect())
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, `{"bounds": {"h_min": 10, "h_max": 20, "s_min": 0, "s_max": 256, "v_min": 0, "v_max": 256}}`)

	var got []*Config
	w, err := NewWatcher(path, time.Hour, func(c *Config) { got = append(got, c) }, nil)
	require.NoError(t, err)

	assert.False(t, w.Check())

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"bounds": {"h_min": 50, "h_max": 70, "s_min": 0, "s_max": 256, "v_min": 0, "v_max": 256}}`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.True(t, w.Check())
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].Bounds.HMin)

	// Same mtime: no second reload.
	assert.False(t, w.Check())

	// A broken save is skipped.
	require.NoError(t, os.WriteFile(path, []byte(`{"bounds": `), 0o644))
	later = later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.False(t, w.Check())
	assert.Len(t, got, 1)
}

func TestWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.json"), time.Second, nil, nil)
	assert.Error(t, err)
}
