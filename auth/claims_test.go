package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIsExpired(t *testing.T) {
	Convey("Given a fixed clock", t, func() {
		now := time.Unix(1_700_000_000, 0)

		Convey("A token expiring beyond the skew is valid", func() {
			So(IsExpired(mint("u1", now.Add(Skew+time.Second)), now), ShouldBeFalse)
			So(IsExpired(mint("u1", now.Add(time.Hour)), now), ShouldBeFalse)
		})

		Convey("A token expiring exactly at the skew boundary is valid", func() {
			So(IsExpired(mint("u1", now.Add(Skew)), now), ShouldBeFalse)
		})

		Convey("A token expiring within the skew is expired", func() {
			So(IsExpired(mint("u1", now.Add(Skew-time.Second)), now), ShouldBeTrue)
			So(IsExpired(mint("u1", now.Add(-time.Minute)), now), ShouldBeTrue)
		})

		Convey("An undecodable token is expired", func() {
			So(IsExpired("not-a-jwt", now), ShouldBeTrue)
			So(IsExpired("", now), ShouldBeTrue)
		})

		Convey("A token without exp is expired", func() {
			token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
			So(IsExpired(token, now), ShouldBeTrue)
		})
	})
}

func TestDecodeClaims(t *testing.T) {
	Convey("Given an access token", t, func() {
		token := mint("u1", time.Now().Add(time.Hour))

		Convey("Identity claims are decoded without a key", func() {
			claims, err := DecodeClaims(token)
			So(err, ShouldBeNil)
			So(claims.Subject, ShouldEqual, "u1")
			So(claims.Email, ShouldEqual, "u1@example.com")
			So(claims.OrgID, ShouldEqual, 7)
			So(claims.Role, ShouldEqual, "admin")
		})

		Convey("Garbage is an error", func() {
			_, err := DecodeClaims("a.b")
			So(err, ShouldNotBeNil)
		})
	})
}
