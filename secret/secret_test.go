package secret

import (
	"encoding/base64"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRoundTrip(t *testing.T) {
	Convey("Given a sealer bound to a host and user", t, func() {
		s := NewSealerFor("build-01", "alice")

		for _, plaintext := range []string{"", "T1", "eyJhbGciOi.payload.sig", "ünïcødé ✓"} {
			Convey("It round-trips "+`"`+plaintext+`"`, func() {
				blob, err := s.Encrypt(plaintext, "auth-token")
				So(err, ShouldBeNil)

				got, err := s.Decrypt(blob, "auth-token")
				So(err, ShouldBeNil)
				So(got, ShouldEqual, plaintext)
			})
		}

		Convey("Two encryptions of the same value differ but both decrypt", func() {
			a, err := s.Encrypt("R1", "auth-token")
			So(err, ShouldBeNil)
			b, err := s.Encrypt("R1", "auth-token")
			So(err, ShouldBeNil)

			So(a, ShouldNotEqual, b)
			So(must(s.Decrypt(a, "auth-token")), ShouldEqual, "R1")
			So(must(s.Decrypt(b, "auth-token")), ShouldEqual, "R1")
		})

		Convey("The blob is URL safe", func() {
			blob, _ := s.Encrypt("some value that is long enough to produce +/ characters", "x")
			So(blob, ShouldNotContainSubstring, "+")
			So(blob, ShouldNotContainSubstring, "/")
			So(blob, ShouldNotContainSubstring, "=")
		})
	})
}

func TestDecryptFailures(t *testing.T) {
	Convey("Given a sealed value", t, func() {
		s := NewSealerFor("build-01", "alice")
		blob, err := s.Encrypt("R1", "auth-token")
		So(err, ShouldBeNil)

		Convey("A structurally short blob is rejected", func() {
			_, err := s.Decrypt(base64.RawURLEncoding.EncodeToString(make([]byte, nonceSize+tagSize-1)), "auth-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("A non base64url blob is rejected", func() {
			_, err := s.Decrypt("!!not-base64!!", "auth-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("Tampered ciphertext is rejected", func() {
			raw, _ := base64.RawURLEncoding.DecodeString(blob)
			raw[len(raw)-1] ^= 0x01
			_, err := s.Decrypt(base64.RawURLEncoding.EncodeToString(raw), "auth-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("A different salt is rejected", func() {
			_, err := s.Decrypt(blob, "ci-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("A different host is rejected", func() {
			_, err := NewSealerFor("build-02", "alice").Decrypt(blob, "auth-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("Plaintext that is not UTF-8 does not come back", func() {
			bad, err := s.Encrypt("\xff\xfe", "auth-token")
			So(err, ShouldBeNil)
			_, err = s.Decrypt(bad, "auth-token")
			So(errors.Is(err, ErrDecryption), ShouldBeTrue)
		})

		Convey("A different user is rejected", func() {
			_, err := NewSealerFor("build-01", "bob").Decrypt(blob, "auth-token")
			var de *DecryptionError
			So(errors.As(err, &de), ShouldBeTrue)
			So(de.Reason, ShouldEqual, "authentication failed")
		})
	})
}

func must(s string, err error) string {
	if err != nil {
		panic(err)
	}
	return s
}
