package engine

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/geodov/godov/internal/cache"
	"github.com/geodov/godov/internal/core/httpclient"
	"github.com/geodov/godov/internal/core/ogc"
	"github.com/geodov/godov/internal/dovtest"
	"github.com/geodov/godov/internal/metadata"
	"github.com/geodov/godov/internal/worker"
	dt "github.com/geodov/godov/pkg/dovtype"
	"github.com/geodov/godov/pkg/hooks"
)

const (
	nsDovPub  = "http://dov.vlaanderen.be/ocdov/dov-pub"
	xsdSchema = "xdov/schema/boring/BoringDataCodes.xsd"
)

var testMethode = &dt.Subtype{
	Name:     "boormethode",
	RootPath: ".//boring/details/boormethode",
	Fields: []dt.Field{
		dt.XMLField("diepte_methode_van", "/van", dt.Float),
		dt.XMLField("diepte_methode_tot", "/tot", dt.Float),
		dt.XMLField("boormethode", "/methode", dt.String, dt.WithXSD(xsdSchema, "BoormethodeEnumType")),
	},
}

var testBoring = dt.MustNew(dt.Definition{
	Name:      "boring",
	Typename:  "dov-pub:Boringen",
	Namespace: nsDovPub,
	Fields: []dt.Field{
		dt.WFSField("pkey_boring", "fiche", dt.String, dt.NotNull()),
		dt.WFSField("boornummer", "boornummer", dt.String),
		dt.WFSField("diepte_boring_tot", "diepte_tot_m", dt.Float),
		dt.XMLField("diepte_boring_van", "/boring/diepte_van", dt.Float),
	},
	Subtype: testMethode,
})

const enumXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:simpleType name="BoormethodeEnumType">
    <xs:restriction base="xs:string">
      <xs:enumeration value="spoelboring"/>
      <xs:enumeration value="avegaar"/>
    </xs:restriction>
  </xs:simpleType>
</xs:schema>`

// newPortal serves n boreholes B1..Bn in pages of 10.
func newPortal(t *testing.T, n int) *dovtest.Portal {
	t.Helper()
	p := dovtest.New(t)
	p.CountDefault = 10
	features := make([]dovtest.Feature, n)
	for i := range n {
		id := strconv.Itoa(i + 1)
		features[i] = dovtest.Feature{
			Attrs: map[string]string{
				"fiche":        p.ObjectURL("boring", id),
				"boornummer":   "B" + id,
				"diepte_tot_m": "12.5",
				"gemeente":     "Gent",
			},
			Geom: orb.Point{150000, 200000 + float64(i)},
		}
	}
	p.AddLayer(dovtest.Layer{
		Typename:       "dov-pub:Boringen",
		Title:          "Boringen",
		Abstract:       "Alle boringen",
		Namespace:      nsDovPub,
		GeometryColumn: "geom",
		Attributes: []dovtest.Attribute{
			{Name: "fiche", XSDType: "string", Lower: 1},
			{Name: "boornummer", XSDType: "string"},
			{Name: "diepte_tot_m", XSDType: "decimal"},
			{Name: "gemeente", XSDType: "string", Definition: "Gemeente van de boring."},
		},
		Features: features,
	})
	p.SetDocument("/"+xsdSchema, []byte(enumXSD))
	return p
}

// boringXML renders an object document with one boormethode per triple
// of van, tot and methode.
func boringXML(van string, methods ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<ns2:dov-schema xmlns:ns2="http://kern.schemas.dov.vlaanderen.be"><boring><diepte_van>`)
	b.WriteString(van)
	b.WriteString(`</diepte_van><details>`)
	for _, m := range methods {
		b.WriteString("<boormethode><van>" + m[0] + "</van><tot>" + m[1] + "</tot><methode>" + m[2] + "</methode></boormethode>")
	}
	b.WriteString(`</details></boring></ns2:dov-schema>`)
	return b.String()
}

func newEngine(t *testing.T, p *dovtest.Portal, c cache.Cache, hs ...hooks.Hook) *Engine {
	t.Helper()
	bus := hooks.NewBus(hs...)
	session := httpclient.New(httpclient.Options{Timeout: 5 * time.Second, Retries: 0})
	ep := ogc.Endpoints{Base: p.URL}
	reg := metadata.NewRegistry(metadata.NewResolver(session, ep, metadata.WithHooks(bus)))
	return New(Options{
		HTTP:      session,
		Endpoints: ep,
		Registry:  reg,
		Cache:     c,
		Hooks:     bus,
		Workers:   worker.Options{Workers: 3, Queue: 2},
	})
}

// counter counts lifecycle events; XML events arrive from the workers.
type counter struct {
	hooks.Base
	mu     sync.Mutex
	n      map[string]int
	result int
}

func newCounter() *counter { return &counter{n: map[string]int{}} }

func (c *counter) inc(k string) {
	c.mu.Lock()
	c.n[k]++
	c.mu.Unlock()
}

func (c *counter) get(k string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[k]
}

func (c *counter) WFSSearchInit(context.Context, string) { c.inc("init") }
func (c *counter) XMLCacheHit(context.Context, string)   { c.inc("hit") }
func (c *counter) XMLCacheMiss(context.Context, string)  { c.inc("miss") }
func (c *counter) XMLDownloaded(context.Context, string) { c.inc("downloaded") }

func (c *counter) WFSSearchResult(_ context.Context, _ string, n int) {
	c.mu.Lock()
	c.result = n
	c.mu.Unlock()
}

// cannedWFS answers every GetFeature with body.
type cannedWFS struct {
	hooks.Base
	body []byte
}

func (c cannedWFS) InjectWFSGetFeatureResponse(context.Context, []byte) ([]byte, error) {
	return c.body, nil
}
