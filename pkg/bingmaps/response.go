package bingmaps

import (
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/road-distance-cli/internal/model"
)

// travelDistancePath locates resourceSets[0].resources[0].travelDistance.
const travelDistancePath = "resourceSets.0.resources.0.travelDistance"

var (
	// ErrFieldAbsent means the response parsed but carried no numeric travel
	// distance at the expected path.
	ErrFieldAbsent = eris.New("bingmaps: travel distance not in response")

	// ErrMalformedJSON means the response body is not valid JSON.
	ErrMalformedJSON = eris.New("bingmaps: response is not valid json")
)

// TravelDistance extracts the first route's travel distance from a Routes
// response body. It returns ErrMalformedJSON for unparsable bodies and
// ErrFieldAbsent, with the missing-distance sentinel, when any key or index
// along the path is missing or the value is not a number.
func TravelDistance(body []byte) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, ErrMalformedJSON
	}

	v := gjson.GetBytes(body, travelDistancePath)
	if !v.Exists() || v.Type != gjson.Number {
		return model.MissingDistance(), ErrFieldAbsent
	}
	return v.Float(), nil
}
