package mirror

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
)

const (
	contentTypeAudioMP4 = "audio/mp4"
	contentTypeMPEGTS   = "video/MP2T"
	contentTypeWebVTT   = "text/vtt"
	tsPacketSize        = 188
)

// DetectContentType replaces a generic binary content type with the type
// the body actually carries. Any other declared type is returned as is.
func DetectContentType(data []byte, declared string) string {
	if declared != "" && !models.IsOctetStream(declared) {
		return declared
	}

	switch parser.DetectDocument(&models.Document{Body: data}) {
	case models.FormatHLS:
		return models.ContentTypeHLS
	case models.FormatDASH:
		return models.ContentTypeDASH
	}

	if ct, ok := sniffISOBMFF(data); ok {
		return ct
	}
	if len(data) > tsPacketSize && data[0] == 0x47 && data[tsPacketSize] == 0x47 {
		return contentTypeMPEGTS
	}
	if bytes.HasPrefix(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), []byte("WEBVTT")) {
		return contentTypeWebVTT
	}

	if declared == "" {
		return models.ContentTypeOctetStream
	}
	return declared
}

// sniffISOBMFF reads the first box header. Init segments whose tracks are
// all audio are reported as audio/mp4.
func sniffISOBMFF(data []byte) (string, bool) {
	hdr, err := mp4.DecodeHeader(bytes.NewReader(data))
	if err != nil {
		return "", false
	}

	switch hdr.Name {
	case "ftyp":
		if audioOnly(data) {
			return contentTypeAudioMP4, true
		}
		return models.ContentTypeMP4, true
	case "styp", "moof", "moov", "sidx", "emsg", "prft":
		return models.ContentTypeMP4, true
	}
	return "", false
}

func audioOnly(data []byte) bool {
	f, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil || f.Init == nil || f.Init.Moov == nil || len(f.Init.Moov.Traks) == 0 {
		return false
	}
	for _, trak := range f.Init.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "soun" {
			return false
		}
	}
	return true
}
