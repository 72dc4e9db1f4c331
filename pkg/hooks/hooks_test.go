package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geodov/godov/internal/core/observability"
	"github.com/geodov/godov/internal/hitevents"
	"github.com/geodov/godov/internal/logger"
	"github.com/geodov/godov/pkg/doverr"
)

type tracer struct {
	Base
	name   string
	events *[]string
	inject []byte
}

func (t tracer) XMLRequested(_ context.Context, pkey string) {
	*t.events = append(*t.events, t.name+":"+pkey)
}

func (t tracer) InjectXMLResponse(context.Context, string) ([]byte, error) {
	*t.events = append(*t.events, t.name+":inject")
	return t.inject, nil
}

func TestBus_OrderAndFirstInjectWins(t *testing.T) {
	var events []string
	bus := NewBus(
		tracer{name: "a", events: &events},
		tracer{name: "b", events: &events, inject: []byte("<b/>")},
		tracer{name: "c", events: &events, inject: []byte("<c/>")},
	)
	bus.XMLRequested(t.Context(), "pk")
	data, err := bus.InjectXMLResponse(t.Context(), "pk")
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(data))
	assert.Equal(t, []string{"a:pk", "b:pk", "c:pk", "a:inject", "b:inject"}, events)

	bus.Reset()
	data, err = bus.InjectXMLResponse(t.Context(), "pk")
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	bus.XMLCacheHit(t.Context(), "pk")
	data, err := bus.InjectMetaResponse(t.Context(), "url")
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestRequestKey(t *testing.T) {
	assert.Equal(t, "https://x/wfs", RequestKey("https://x/wfs", nil))
	a := RequestKey("https://x/sparql", []byte("q1"))
	assert.True(t, strings.HasPrefix(a, "https://x/sparql#"))
	assert.NotEqual(t, a, RequestKey("https://x/sparql", []byte("q2")))
	assert.Equal(t, BodyKey([]byte("q")), BodyKey([]byte("q")))
}

func TestRecorderReplayer_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.zip")
	ctx := t.Context()
	query := []byte(`<wfs:GetFeature/>`)

	rec := NewRecorder(path, "v1.2.3")
	bus := NewBus(rec)
	bus.MetaReceived(ctx, "https://dov/geoserver/wfs?request=GetCapabilities", []byte("<caps/>"))
	bus.WFSSearchInit(ctx, "dov-pub:Boringen")
	bus.WFSSearchResultReceived(ctx, query, []byte("<fc/>"))
	bus.XMLReceived(ctx, "https://dov/data/boring/1", []byte("<boring/>"))
	bus.XMLReceived(ctx, "https://dov/data/boring/1", []byte("<ignored/>"))
	bus.WFSSearchResult(ctx, "dov-pub:Boringen", 1)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	rp, err := OpenReplayer(path)
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID(), rp.Manifest.SessionID)
	assert.Equal(t, "v1.2.3", rp.Manifest.Versions["godov"])
	require.Len(t, rp.Manifest.Searches, 1)
	assert.Equal(t, 1, rp.Manifest.Searches[0].Count)
	assert.Len(t, rp.Manifest.Entries, 3)

	replay := NewBus(rp)
	got, err := replay.InjectMetaResponse(ctx, "https://dov/geoserver/wfs?request=GetCapabilities")
	require.NoError(t, err)
	assert.Equal(t, "<caps/>", string(got))

	got, err = replay.InjectWFSGetFeatureResponse(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, "<fc/>", string(got))

	got, err = replay.InjectXMLResponse(ctx, "https://dov/data/boring/1")
	require.NoError(t, err)
	assert.Equal(t, "<boring/>", string(got))

	_, err = replay.InjectXMLResponse(ctx, "https://dov/data/boring/2")
	assert.True(t, errors.Is(err, doverr.ErrLogReplay))
	_, err = replay.InjectWFSGetFeatureResponse(ctx, []byte("<other/>"))
	assert.True(t, errors.Is(err, doverr.ErrLogReplay))
}

func TestOpenReplayer_Missing(t *testing.T) {
	_, err := OpenReplayer(filepath.Join(t.TempDir(), "nope.zip"))
	assert.True(t, errors.Is(err, doverr.ErrLogReplay))
}

func TestMetricsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewMetrics(observability.Init(reg, true))
	ctx := t.Context()

	h.WFSSearchInit(ctx, "dov-pub:Boringen")
	h.WFSSearchResult(ctx, "dov-pub:Boringen", 15)
	h.XMLCacheMiss(ctx, "pk")
	h.XMLDownloaded(ctx, "pk")
	h.XMLCacheHit(ctx, "pk")
	h.XMLCacheHit(ctx, "pk")
	h.MetaReceived(ctx, "url", nil)

	expected := `
# HELP dov_xml_requests_total Object XML requests by outcome.
# TYPE dov_xml_requests_total counter
dov_xml_requests_total{outcome="downloaded"} 1
dov_xml_requests_total{outcome="hit"} 2
dov_xml_requests_total{outcome="miss"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dov_xml_requests_total"))

	n, err := testutil.GatherAndCount(reg, "dov_wfs_features_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// disabled metrics must not panic
	NewMetrics(nil).XMLCacheHit(ctx, "pk")
}

func TestKafkaHook_PublishesEvents(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	var got []hitevents.Event
	check := func(msg *sarama.ProducerMessage) error {
		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev hitevents.Event
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if msg.Topic != "dov-search-events" {
			return fmt.Errorf("topic %q", msg.Topic)
		}
		got = append(got, ev)
		return nil
	}
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(check)
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(check)

	k := NewKafka(hitevents.NewWithProducer(mp, "dov-search-events", 8, nil))
	ctx := logger.WithTypename(logger.WithSearchID(t.Context(), "s-42"), "dov-pub:Boringen")
	k.WFSSearchInit(ctx, "dov-pub:Boringen")
	k.XMLDownloaded(ctx, "https://dov/data/boring/1")
	require.NoError(t, k.Close())

	require.Len(t, got, 2)
	assert.Equal(t, "wfs_search_init", got[0].Type)
	assert.Equal(t, "s-42", got[0].SearchID)
	assert.Equal(t, "xml_downloaded", got[1].Type)
	assert.Equal(t, "https://dov/data/boring/1", got[1].Pkey)
	assert.Equal(t, "dov-pub:Boringen", got[1].Typename)
}

func TestLoggingHook(t *testing.T) {
	h := NewLogging(nil)
	h.WFSSearchInit(t.Context(), "dov-pub:Boringen")
	h.MetaReceived(t.Context(), "url", []byte("x"))
}
