// Package metadata maps gRPC metadata to and from HTTP/2 header fields.
package metadata

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

// MD is the gRPC metadata map; keys are lower case.
type MD = metadata.MD

const binarySuffix = "-bin"

// MetadataCodec converts between metadata and header fields.
type MetadataCodec struct{}

// EncodeHeaders writes md into h. Reserved transport headers are skipped and
// values of "-bin" keys are base64 encoded.
func (MetadataCodec) EncodeHeaders(md MD, h http.Header) {
	for k, vs := range md {
		k = strings.ToLower(k)
		if isReserved(k) {
			continue
		}
		for _, v := range vs {
			if strings.HasSuffix(k, binarySuffix) {
				v = base64.RawStdEncoding.EncodeToString([]byte(v))
			}
			h.Add(k, v)
		}
	}
}

// DecodeHeaders collects the application metadata carried in h.
func (MetadataCodec) DecodeHeaders(h http.Header) (MD, error) {
	md := MD{}
	for k, vs := range h {
		k = strings.ToLower(k)
		if isReserved(k) {
			continue
		}
		for _, v := range vs {
			if strings.HasSuffix(k, binarySuffix) {
				b, err := decodeBinary(v)
				if err != nil {
					return nil, fmt.Errorf("header %s: %w", k, err)
				}
				v = string(b)
			}
			md[k] = append(md[k], v)
		}
	}
	return md, nil
}

// decodeBinary accepts padded and unpadded base64, as peers send either.
func decodeBinary(v string) ([]byte, error) {
	if len(v)%4 == 0 {
		return base64.StdEncoding.DecodeString(v)
	}
	return base64.RawStdEncoding.DecodeString(v)
}

func isReserved(k string) bool {
	if strings.HasPrefix(k, ":") || strings.HasPrefix(k, "grpc-") {
		return true
	}
	switch k {
	case "content-type", "te", "user-agent", "content-length", "trailer", "connection":
		return true
	}
	return false
}
