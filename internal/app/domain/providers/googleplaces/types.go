package googleplaces

import "encoding/json"

// Provider status values.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusInvalidRequest = "INVALID_REQUEST"
)

type envelope struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location location `json:"location"`
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
}

type openingHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type placeResult struct {
	PlaceID              string             `json:"place_id"`
	Name                 string             `json:"name"`
	FormattedAddress     string             `json:"formatted_address"`
	Geometry             geometry           `json:"geometry"`
	Rating               *float64           `json:"rating,omitempty"`
	UserRatingsTotal     *int               `json:"user_ratings_total,omitempty"`
	PriceLevel           *int               `json:"price_level,omitempty"`
	OpeningHours         *openingHours      `json:"opening_hours,omitempty"`
	FormattedPhoneNumber string             `json:"formatted_phone_number,omitempty"`
	Website              string             `json:"website,omitempty"`
	Types                []string           `json:"types"`
	Photos               []photo            `json:"photos,omitempty"`
	AddressComponents    []addressComponent `json:"address_components,omitempty"`
}

// district returns the neighbourhood-level address component, if the provider sent one.
func (r placeResult) district() string {
	for _, want := range []string{"neighborhood", "sublocality_level_1", "sublocality"} {
		for _, c := range r.AddressComponents {
			for _, t := range c.Types {
				if t == want {
					return c.LongName
				}
			}
		}
	}
	return ""
}
