package sqlite

type defaultRow struct {
	title string
	body  string
}

// defaultContent is inserted into an empty collection on first read.
var defaultContent = map[string][]defaultRow{
	"services": {
		{"General contracting", "Turnkey construction of residential and commercial buildings."},
		{"Road construction", "Earthworks, paving and maintenance of roads and bridges."},
		{"Engineering surveys", "Geodetic and geological surveys for design and permitting."},
	},
	"projects": {
		{"Riverside residential complex", "Three 12-storey buildings with underground parking."},
		{"Regional highway upgrade", "Reconstruction of 18 km of the regional highway."},
	},
	"vacancies": {
		{"Site engineer", "Supervise works on site and keep the construction log."},
		{"Excavator operator", "Operate tracked excavators on road projects."},
	},
}
