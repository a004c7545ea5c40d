// Package tiles resolves map tile URL templates for each weather layer.
// Everything here is pure: no network, no state.
package tiles

import (
	"github.com/breatheroute/wxoverlay/internal/layers"
)

const (
	// DefaultHost is the animated tile cache host.
	DefaultHost = "https://tilecache.rainviewer.com"

	// Animated templates. {host}, {token} and {size} are substituted by the
	// resolver; {z}/{x}/{y} are left for the map library.
	DefaultRadarTemplate     = "{host}/v2/radar/{token}/{size}/{z}/{x}/{y}/2/1_1.png"
	DefaultVisibleTemplate   = "{host}{token}/{size}/{z}/{x}/{y}/0/0_1.png"
	DefaultInfraredTemplate  = "{host}{token}/{size}/{z}/{x}/{y}/0/0_0.png"
	defaultStaticRadar       = "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/nexrad-n0q-900913/{z}/{x}/{y}.png"
	defaultStaticSatellite   = "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best/VIIRS_SNPP_CorrectedReflectance_TrueColor/default/default/GoogleMapsCompatible_Level9/{z}/{y}/{x}.jpg"
	defaultStaticClouds      = "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/goes-east-ir-4km-900913/{z}/{x}/{y}.png"
	defaultStaticTemperature = "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best/MODIS_Terra_Land_Surface_Temp_Day/default/default/GoogleMapsCompatible_Level7/{z}/{y}/{x}.png"
)

// Templates configures the URL templates used by a Resolver.
// Zero fields fall back to the defaults.
type Templates struct {
	Host     string `yaml:"host"`
	Radar    string `yaml:"radar"`
	Visible  string `yaml:"visible"`
	Infrared string `yaml:"infrared"`

	// Static holds one fallback template per layer, keyed by layer type.
	Static map[layers.Type]string `yaml:"static"`

	// Attribution holds one attribution string per layer, keyed by layer type.
	Attribution map[layers.Type]string `yaml:"attribution"`
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() Templates {
	return Templates{
		Host:     DefaultHost,
		Radar:    DefaultRadarTemplate,
		Visible:  DefaultVisibleTemplate,
		Infrared: DefaultInfraredTemplate,
		Static: map[layers.Type]string{
			layers.Radar:       defaultStaticRadar,
			layers.Satellite:   defaultStaticSatellite,
			layers.Clouds:      defaultStaticClouds,
			layers.Temperature: defaultStaticTemperature,
		},
		Attribution: map[layers.Type]string{
			layers.Radar:       "Radar: RainViewer | Static: Iowa Environmental Mesonet",
			layers.Satellite:   "Satellite: RainViewer | Static: NASA GIBS",
			layers.Clouds:      "Infrared: RainViewer | Static: Iowa Environmental Mesonet GOES",
			layers.Temperature: "Infrared: RainViewer | Static: NASA GIBS MODIS",
		},
	}
}

// withDefaults fills empty fields from the built-in templates.
func (t Templates) withDefaults() Templates {
	def := DefaultTemplates()
	if t.Host == "" {
		t.Host = def.Host
	}
	if t.Radar == "" {
		t.Radar = def.Radar
	}
	if t.Visible == "" {
		t.Visible = def.Visible
	}
	if t.Infrared == "" {
		t.Infrared = def.Infrared
	}

	static := make(map[layers.Type]string, len(def.Static))
	attribution := make(map[layers.Type]string, len(def.Attribution))
	for _, lt := range layers.AllTypes() {
		static[lt] = def.Static[lt]
		if v := t.Static[lt]; v != "" {
			static[lt] = v
		}
		attribution[lt] = def.Attribution[lt]
		if v := t.Attribution[lt]; v != "" {
			attribution[lt] = v
		}
	}
	t.Static = static
	t.Attribution = attribution
	return t
}
