package maintenance

import "github.com/google/uuid"

// Namespace seeds the deterministic row ids. It must never change.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://empowered.vote/appellations"))

// ParcelID is the stable row id for a geometry path.
func ParcelID(geojsonPath string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte("parcel:"+geojsonPath))
}
