// Package towns moves town saves between the local disk and the game
// server: load, save, copy, import, export and delete, plus moderation of
// publicly submitted uploads.
package towns

// MiB is one mebibyte.
const MiB = 1 << 20

// Surface is one of the server's entry points for town transfers. The
// staff panel and the self-service portal differ only in endpoint,
// credential and size limit, so a single Client serves both.
type Surface struct {
	// Name identifies the surface in audit entries and messages.
	Name string
	// Endpoint is the town operations endpoint. Empty for surfaces that
	// only use the dedicated import/export routes.
	Endpoint string
	// AuthHeader names the header carrying the token on Endpoint.
	AuthHeader string
	// MaxFileSize is the largest file accepted for upload, in bytes.
	MaxFileSize int64
	// Self is true when the surface acts on the caller's own town.
	Self bool
}

var (
	// Staff is the operator panel. Town operations authenticate with
	// mh_auth_params; imports for a named user go through the admin API.
	Staff = Surface{
		Name:        "staff",
		Endpoint:    "/mh/games/bg_gameserver_plugin/townOperations/",
		AuthHeader:  "mh_auth_params",
		MaxFileSize: 5 * MiB,
	}

	// SelfService is the player portal, authenticated with a bearer token.
	SelfService = Surface{
		Name:        "self-service",
		MaxFileSize: 5 * MiB,
		Self:        true,
	}

	// PublicSubmission queues a town for operator review.
	PublicSubmission = Surface{
		Name:        "submission",
		MaxFileSize: 10 * MiB,
		Self:        true,
	}
)

// SurfaceByName returns the built-in surface called name.
func SurfaceByName(name string) (Surface, bool) {
	for _, s := range []Surface{Staff, SelfService, PublicSubmission} {
		if s.Name == name {
			return s, true
		}
	}
	return Surface{}, false
}
