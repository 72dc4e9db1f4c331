// Package ogc speaks the OGC protocols of the DOV portal: it builds WFS 2.0
// GetFeature bodies and parses WFS, CSW, XSD and SPARQL responses.
package ogc

import (
	"net/url"
	"strings"

	"github.com/geodov/godov/internal/core/config"
)

// Endpoints derives every service URL from the portal base URL.
type Endpoints struct {
	Base string
}

func (e Endpoints) WFS() string { return config.BuildURL(e.Base, "geoserver/wfs") }
func (e Endpoints) CSW() string { return config.BuildURL(e.Base, "geonetwork/srv/dut/csw") }

// ObjectURL is the permanent key of one object.
func (e Endpoints) ObjectURL(family, id string) string {
	return config.BuildURL(e.Base, "data/"+family+"/"+id)
}

// Resolve makes a schema path absolute against the base URL. Absolute URLs
// are returned unchanged.
func (e Endpoints) Resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return config.BuildURL(e.Base, path)
}

// SPARQL is the linked-data endpoint: the www host becomes data and the
// path is /sparql.
func (e Endpoints) SPARQL() string {
	u, err := url.Parse(e.Base)
	if err != nil || u.Host == "" {
		return config.BuildURL(e.Base, "sparql")
	}
	if rest, ok := strings.CutPrefix(u.Host, "www."); ok {
		u.Host = "data." + rest
	}
	u.Path = "/sparql"
	u.RawQuery = ""
	return u.String()
}

func (e Endpoints) GetCapabilitiesURL() string {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetCapabilities")
	return e.WFS() + "?" + params.Encode()
}

func (e Endpoints) DescribeFeatureTypeURL(typename string) string {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "DescribeFeatureType")
	params.Set("typeNames", typename)
	return e.WFS() + "?" + params.Encode()
}

// FeatureCatalogueURL requests the ISO 19110 catalogue with the given uuid.
func (e Endpoints) FeatureCatalogueURL(uuid string) string {
	params := url.Values{}
	params.Set("service", "CSW")
	params.Set("version", "2.0.2")
	params.Set("request", "GetRecordById")
	params.Set("outputSchema", "http://www.isotc211.org/2005/gfc")
	params.Set("elementSetName", "full")
	params.Set("id", uuid)
	return e.CSW() + "?" + params.Encode()
}
