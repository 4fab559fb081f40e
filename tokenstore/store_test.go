package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eolscan/eolscan/filesystem"
	"github.com/eolscan/eolscan/secret"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/zalando/go-keyring"
)

const dir = "/home/alice/.config/eolscan/tokens"

func init() {
	filesystem.SetMemMapFs()
}

func TestStore(t *testing.T) {
	Convey("Given a file backed session store", t, func() {
		filesystem.SetMemMapFs()
		sealer := secret.NewSealerFor("build-01", "alice")
		store := Open(Session, FileBackend{Dir: dir}, sealer)

		Convey("A missing key is absent", func() {
			So(store.Get("access_token").IsPresent(), ShouldBeFalse)
		})

		Convey("When values are set", func() {
			So(store.SetAll(map[string]string{"access_token": "T1", "refresh_token": "R1"}), ShouldBeNil)

			Convey("They read back decrypted", func() {
				So(store.Get("access_token").MustGet(), ShouldEqual, "T1")
				So(store.Get("refresh_token").MustGet(), ShouldEqual, "R1")
			})

			Convey("The file never contains the plaintext", func() {
				raw := string(lo.Must(filesystem.API().ReadFile(filepath.Join(dir, "auth-token.json"))))
				So(raw, ShouldNotContainSubstring, `"T1"`)
				So(raw, ShouldNotContainSubstring, `"R1"`)
				So(raw, ShouldContainSubstring, `"access_token"`)
			})

			Convey("The file is owner-only", func() {
				info := lo.Must(filesystem.API().Stat(filepath.Join(dir, "auth-token.json")))
				So(info.Mode().Perm(), ShouldEqual, os.FileMode(0o600))
			})

			Convey("Deleting one key keeps the other", func() {
				So(store.Delete("access_token"), ShouldBeNil)
				So(store.Get("access_token").IsPresent(), ShouldBeFalse)
				So(store.Get("refresh_token").MustGet(), ShouldEqual, "R1")
			})

			Convey("Clear removes the namespace file", func() {
				So(store.Clear(), ShouldBeNil)
				exists := lo.Must(filesystem.API().Exists(filepath.Join(dir, "auth-token.json")))
				So(exists, ShouldBeFalse)
			})

			Convey("Another namespace cannot read them", func() {
				other := Open(CI, FileBackend{Dir: dir}, sealer)
				So(other.Get("access_token").IsPresent(), ShouldBeFalse)
			})

			Convey("A store opened for another user reports them absent", func() {
				foreign := Open(Session, FileBackend{Dir: dir}, secret.NewSealerFor("build-01", "mallory"))
				So(foreign.Get("access_token").IsPresent(), ShouldBeFalse)
			})
		})

		Convey("A corrupted file reads as absent and is replaced on write", func() {
			So(filesystem.WritePrivate(filepath.Join(dir, "auth-token.json"), []byte("{not json")), ShouldBeNil)
			So(store.Get("access_token").IsPresent(), ShouldBeFalse)

			So(store.Set("access_token", "T2"), ShouldBeNil)
			So(store.Get("access_token").MustGet(), ShouldEqual, "T2")
		})
	})
}

func TestKeyringBackend(t *testing.T) {
	Convey("Given a mocked OS keyring", t, func() {
		keyring.MockInit()
		store := Open(CI, KeyringBackend{}, secret.NewSealerFor("build-01", "alice"))

		Convey("Values round-trip through the keyring", func() {
			So(store.Set("refresh_token", "CI-R1"), ShouldBeNil)
			So(store.Get("refresh_token").MustGet(), ShouldEqual, "CI-R1")

			raw := lo.Must(keyring.Get("eolscan", "ci-token"))
			So(raw, ShouldNotContainSubstring, "CI-R1")
		})

		Convey("Clearing an empty namespace is not an error", func() {
			So(store.Clear(), ShouldBeNil)
			So(store.Get("refresh_token").IsPresent(), ShouldBeFalse)
		})
	})
}

func TestNewBackend(t *testing.T) {
	Convey("NewBackend", t, func() {
		Convey("defaults to files", func() {
			b, err := NewBackend("", dir)
			So(err, ShouldBeNil)
			So(b, ShouldHaveSameTypeAs, FileBackend{})
		})

		Convey("selects the keyring", func() {
			b, err := NewBackend("keyring", dir)
			So(err, ShouldBeNil)
			So(b, ShouldHaveSameTypeAs, KeyringBackend{})
		})

		Convey("rejects unknown kinds", func() {
			_, err := NewBackend("vault", dir)
			So(err, ShouldNotBeNil)
		})
	})
}
