package element

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// MetadataElement attaches a fixed set of metadata to every request.
type MetadataElement struct {
	md metadata.MD
}

// NewMetadataElement creates an element that sends md with each call.
func NewMetadataElement(md metadata.MD) *MetadataElement {
	return &MetadataElement{md: md.Copy()}
}

// ProcessRequest merges the element's metadata into the request.
func (m *MetadataElement) ProcessRequest(ctx context.Context, req *RPCRequest) (*RPCRequest, context.Context, error) {
	req.Metadata = metadata.Join(req.Metadata, m.md)
	return req, ctx, nil
}

// ProcessResponse returns the response unchanged.
func (m *MetadataElement) ProcessResponse(ctx context.Context, resp *RPCResponse) (*RPCResponse, context.Context, error) {
	return resp, ctx, nil
}

// Name returns the name of this element
func (m *MetadataElement) Name() string {
	return "MetadataElement"
}
