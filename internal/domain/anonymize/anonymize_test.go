package anonymize_test

import (
	"testing"

	"github.com/quillmetrics/quill/internal/domain/anonymize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAnonymizer(t *testing.T) {
	Convey("Given an anonymizer keyed by one salt", t, func() {
		a := anonymize.New("test-salt")

		Convey("When the same raw identifier is hashed twice", func() {
			first := a.Pseudonymize("198.51.100.7")
			second := a.Pseudonymize("198.51.100.7")

			Convey("Then the pseudonym is deterministic", func() {
				So(first, ShouldEqual, second)
			})
		})

		Convey("When different raw identifiers are hashed", func() {
			Convey("Then the pseudonyms differ", func() {
				So(a.Pseudonymize("198.51.100.7"), ShouldNotEqual, a.Pseudonymize("198.51.100.8"))
			})
		})

		Convey("When a pseudonym is produced", func() {
			p := a.Pseudonymize("198.51.100.7")

			Convey("Then it is a 16-byte hex digest, not the raw identifier", func() {
				So(p, ShouldNotContainSubstring, "198.51.100.7")
				So(len(p), ShouldEqual, 32)
			})
		})
	})

	Convey("Given two anonymizers with different salts", t, func() {
		a := anonymize.New("salt-one")
		b := anonymize.New("salt-two")

		Convey("Then the same visitor maps to different pseudonyms", func() {
			// Rotation is the only forget mechanism: old events stay under
			// the old mapping, new events link under the new one.
			So(a.Pseudonymize("198.51.100.7"), ShouldNotEqual, b.Pseudonymize("198.51.100.7"))
		})
	})

	Convey("Given a custom digest length", t, func() {
		a := anonymize.New("test-salt", anonymize.WithDigestLen(8))

		Convey("Then the pseudonym shrinks accordingly", func() {
			So(len(a.Pseudonymize("198.51.100.7")), ShouldEqual, 16)
		})
	})
}
