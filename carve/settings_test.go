package carve

import (
	"os"
	"testing"

	"go.viam.com/test"
)

func TestSettingsValidate(t *testing.T) {
	test.That(t, DefaultSettings().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero resolution", func(s *Settings) { s.Resolution = 0 }},
		{"negative buffer", func(s *Settings) { s.CarveBuffer = -1 }},
		{"chunk edge below resolution", func(s *Settings) { s.ChunkEdge = s.Resolution / 2 }},
		{"no workers", func(s *Settings) { s.Workers = 0 }},
		{"no samples", func(s *Settings) { s.SamplesPerPoint = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(&s)
			test.That(t, s.Validate(), test.ShouldNotBeNil)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		fn := t.TempDir() + "/settings.json"
		data := `{"resolution": 0.1, "workers": 2, "seed": 42}`
		test.That(t, os.WriteFile(fn, []byte(data), 0o600), test.ShouldBeNil)

		s, err := LoadSettings(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Resolution, test.ShouldAlmostEqual, 0.1)
		test.That(t, s.Workers, test.ShouldEqual, 2)
		test.That(t, s.Seed, test.ShouldEqual, uint64(42))
		// untouched fields keep their defaults
		test.That(t, s.SamplesPerPoint, test.ShouldEqual, DefaultSettings().SamplesPerPoint)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSettings(t.TempDir() + "/nope.json")
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		fn := t.TempDir() + "/settings.json"
		test.That(t, os.WriteFile(fn, []byte(`{"resolution": -1}`), 0o600), test.ShouldBeNil)
		_, err := LoadSettings(fn)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
