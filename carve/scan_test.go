package carve

import (
	"os"
	"testing"

	"go.viam.com/test"
)

func TestScanLogRoundTrip(t *testing.T) {
	sl := octantScan()
	sl.TimestampSigma = 0.001
	test.That(t, sl.NumPoints(), test.ShouldEqual, 8)

	fn := t.TempDir() + "/scan.log"
	test.That(t, sl.WriteToFile(fn), test.ShouldBeNil)

	parsed, err := ReadScanLog(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldResemble, sl)
}

func TestReadScanLogErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadScanLog(t.TempDir() + "/nope.log")
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("wrong magic", func(t *testing.T) {
		fn := t.TempDir() + "/bad.log"
		test.That(t, os.WriteFile(fn, []byte("not a scan log"), 0o600), test.ShouldBeNil)
		_, err := ReadScanLog(fn)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
