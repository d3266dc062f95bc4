package service

import (
	"context"
	"strconv"

	"edge-resizer-go/internal/model"
)

// HandleOriginResponse runs the pipeline for an origin-response event.
//
// When the request was routed to an S3 origin, only a 403 or 404 from the
// bucket (the variant does not exist yet) triggers a transform; any other
// response passes through untouched. Every pipeline failure yields the
// generic failure envelope.
func (s *ResizeService) HandleOriginResponse(ctx context.Context, cf model.EdgeCF) *model.EdgeResponse {
	resp := cf.Response
	if resp == nil {
		resp = &model.EdgeResponse{Status: "404"}
	}

	if cf.Request.IsS3Origin() && !missStatus(resp.Status) {
		return resp
	}

	base := resp.Headers.ToHeaders()
	result, err := s.Resize(&Request{
		Ctx:      ctx,
		Path:     cf.Request.URI,
		RawQuery: cf.Request.QueryString,
		Accept:   cf.Request.Header("Accept"),
		Base:     base,
	})
	if err != nil {
		s.logger.Error("origin response transform failed",
			"err", err,
			"uri", cf.Request.URI,
		)
		return s.assembler.Failure(base)
	}
	return s.assembler.Success(result.Headers, result.Variant)
}

func missStatus(status string) bool {
	code, err := strconv.Atoi(status)
	return err == nil && (code == 403 || code == 404)
}
