package digest

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/go-faster/jx"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/ogenx"
	"github.com/obsdb/odb/pkg/sequence"
)

// HTTPOracle is the real-deployment ItcOracle: it POSTs the observing
// mode to an external ITC service's "/estimate" endpoint, encoding the
// request body with go-faster/jx (the same fast, allocation-light JSON
// writer the teacher's ogen-generated clients use) and validating the
// decoded response shape against the embedded OpenAPI schema before
// trusting it.
//
// Callers wrap HTTPOracle in NewCircuitBreakingOracle so repeated
// failures trip a breaker rather than piling up slow timeouts (spec.md
// §7, ExternalServiceError).
type HTTPOracle struct {
	BaseURL     string
	Client      *http.Client
	Fingerprint ModeFingerprint
}

// NewHTTPOracle builds an HTTPOracle against baseURL using fingerprint
// to render the observing mode into request bytes.
func NewHTTPOracle(baseURL string, client *http.Client, fingerprint ModeFingerprint) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{BaseURL: baseURL, Client: client, Fingerprint: fingerprint}
}

// estimateResponse is satisfied by a decoded ITC response so it can be
// routed through ogenx.ToError uniformly with every other oracle
// client, even though this isn't an ogen-generated type.
type estimateResponse struct {
	status int32
	title  string
	detail string
}

func (r *estimateResponse) GetStatus() int32  { return r.status }
func (r *estimateResponse) GetTitle() string  { return r.title }
func (r *estimateResponse) GetMessage() string { return r.detail }

func (o *HTTPOracle) Estimate(ctx context.Context, params sequence.GeneratorParams) (ItcResult, error) {
	body := encodeEstimateRequest(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/estimate", bytes.NewReader(body))
	if err != nil {
		return ItcResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "building ITC request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return ItcResult{}, apperrors.ExternalServiceError("itc", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ItcResult{}, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "reading ITC response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		title, detail := decodeProblem(raw)
		httpErr := ogenx.ToError(&estimateResponse{status: int32(resp.StatusCode), title: title, detail: detail}, nil)
		return ItcResult{}, apperrors.ExternalServiceError("itc", httpErr.Error())
	}

	schema, err := itcResponseSchema()
	if err != nil {
		return ItcResult{}, err
	}
	decoded, err := decodeEstimateResponse(raw)
	if err != nil {
		return ItcResult{}, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "decoding ITC response")
	}
	if err := schema.VisitJSON(map[string]interface{}{
		"exposureTimeMicros": decoded.ExposureTimeMicros,
		"exposureCount":      decoded.ExposureCount,
	}); err != nil {
		return ItcResult{}, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "ITC response failed schema validation")
	}

	return ItcResult{
		ExposureTime:  odbtype.SpanFromMicros(decoded.ExposureTimeMicros).Duration(),
		ExposureCount: decoded.ExposureCount,
	}, nil
}

// encodeEstimateRequest renders params as the request body the embedded
// ItcEstimateRequest schema describes, using jx rather than
// encoding/json for the allocation-light, streaming-friendly encode
// style the teacher's ogen clients rely on.
func encodeEstimateRequest(params sequence.GeneratorParams) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("observingModeKind")
	e.Str(string(params.Mode.Kind))
	e.FieldStart("fingerprint")
	e.Str(hex.EncodeToString(DefaultFingerprint(params.Mode)))
	e.ObjEnd()
	return e.Bytes()
}

type decodedEstimate struct {
	ExposureTimeMicros int64
	ExposureCount      int
}

func decodeEstimateResponse(raw []byte) (decodedEstimate, error) {
	d := jx.DecodeBytes(raw)
	var out decodedEstimate
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "exposureTimeMicros":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			out.ExposureTimeMicros = v
		case "exposureCount":
			v, err := d.Int()
			if err != nil {
				return err
			}
			out.ExposureCount = v
		default:
			return d.Skip()
		}
		return nil
	})
	return out, err
}

// decodeProblem best-effort extracts title/detail from an RFC 7807
// Problem body; a malformed or empty body simply yields empty strings.
func decodeProblem(raw []byte) (title, detail string) {
	if len(raw) == 0 {
		return "", ""
	}
	d := jx.DecodeBytes(raw)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "title":
			v, err := d.Str()
			if err == nil {
				title = v
			}
			return err
		case "detail":
			v, err := d.Str()
			if err == nil {
				detail = v
			}
			return err
		default:
			return d.Skip()
		}
	})
	return title, detail
}
