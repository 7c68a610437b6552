package filters

import (
	"errors"
	"fmt"

	"github.com/jed1boy/anyfile/object"
)

// applyPredictor undoes the PNG (and no-op TIFF 1) predictors named in
// a FlateDecode DecodeParms dictionary. Cross-reference streams are the
// common user of Predictor 12.
func applyPredictor(data []byte, params *object.Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)

	if predictor == 2 {
		return nil, errors.New("TIFF predictor not supported")
	}
	if predictor < 10 || predictor > 15 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen <= 0 || bpp <= 0 {
		return nil, errors.New("invalid predictor parameters")
	}
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, errors.New("predicted data is not a whole number of rows")
	}

	out := make([]byte, 0, len(data)/stride*rowLen)
	prior := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for offset := 0; offset < len(data); offset += stride {
		tag := data[offset]
		copy(row, data[offset+1:offset+stride])
		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prior[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prior[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prior[i-bpp]
				}
				row[i] += paeth(left, prior[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("invalid PNG filter tag %d", tag)
		}
		out = append(out, row...)
		prior, row = row, prior
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func intParam(d *object.Dict, key object.Name, def int) int {
	if v, ok := object.AsInt(d.Get(key)); ok {
		return int(v)
	}
	return def
}
