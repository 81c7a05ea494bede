package upload

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
)

// imageMIMEs are the raster families accepted under an image extension.
var imageMIMEs = []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/webp"}

// alphaMIMEs are source families that can carry transparency; normalized
// output for these stays PNG.
var alphaMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Config for the upload validator.
type Config struct {
	MaxSizeBytes      int64
	MaxImageDimension int
	AllowedExtensions map[string]struct{} // empty -> constants.AllowedExtensions
}

// Result is an accepted payload, possibly normalized.
type Result struct {
	Bytes      []byte
	Ext        string // normalized, no dot
	Format     string // constants.PDF | IMAGE | DOCX | TXT
	MimeType   string // detected from content
	Normalized bool
}

type Validator struct {
	cfg    Config
	logger *zap.Logger
}

func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = 10 << 20
	}
	if cfg.MaxImageDimension <= 0 {
		cfg.MaxImageDimension = 2400
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = constants.AllowedExtensions
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Validate decides accept/reject for raw bytes under a declared filename.
// Accepted images are normalized best-effort; normalization never blocks
// acceptance.
func (v *Validator) Validate(filename string, data []byte) (Result, error) {
	if len(data) == 0 || int64(len(data)) > v.cfg.MaxSizeBytes {
		return Result{}, fmt.Errorf("%w: %d bytes (limit %d)", common.ErrPayloadTooLarge, len(data), v.cfg.MaxSizeBytes)
	}

	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := v.cfg.AllowedExtensions[ext]; !ok {
		return Result{}, fmt.Errorf("%w: .%s", common.ErrUnsupportedType, ext)
	}

	mtype := mimetype.Detect(data)
	res := Result{
		Bytes:    data,
		Ext:      ext,
		Format:   constants.MapExtToFormat(ext),
		MimeType: mtype.String(),
	}

	if constants.IsImageExt(ext) {
		if !isImageMIME(mtype) {
			return Result{}, fmt.Errorf("%w: declared .%s, detected %s", common.ErrInvalidImageContent, ext, mtype.String())
		}
		v.normalizeImage(&res, filename)
	}

	return res, nil
}

func isImageMIME(mtype *mimetype.MIME) bool {
	for _, m := range imageMIMEs {
		if mtype.Is(m) {
			return true
		}
	}
	return false
}

// normalizeImage corrects orientation from embedded metadata, caps the larger
// dimension, and re-encodes to PNG (alpha-capable sources) or JPEG. Any
// failure leaves the original bytes in place.
func (v *Validator) normalizeImage(res *Result, filename string) {
	img, err := imaging.Decode(bytes.NewReader(res.Bytes), imaging.AutoOrientation(true))
	if err != nil {
		v.logger.Warn("upload.normalize.decode_failed", zap.String("filename", filename), zap.Error(err))
		return
	}

	bounds := img.Bounds()
	if w, h := bounds.Dx(), bounds.Dy(); w > v.cfg.MaxImageDimension || h > v.cfg.MaxImageDimension {
		img = imaging.Fit(img, v.cfg.MaxImageDimension, v.cfg.MaxImageDimension, imaging.Lanczos)
	}

	encoded, mime, err := encodeCanonical(img, res.MimeType)
	if err != nil {
		v.logger.Warn("upload.normalize.encode_failed", zap.String("filename", filename), zap.Error(err))
		return
	}

	v.logger.Debug("upload.normalize.ok",
		zap.String("filename", filename),
		zap.Int("before_bytes", len(res.Bytes)),
		zap.Int("after_bytes", len(encoded)),
		zap.String("mime", mime),
	)
	res.Bytes = encoded
	res.MimeType = mime
	res.Normalized = true
}

func encodeCanonical(img image.Image, sourceMIME string) ([]byte, string, error) {
	var buf bytes.Buffer
	if _, hasAlpha := alphaMIMEs[sourceMIME]; hasAlpha {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}
