package hazel

const (
	VectorMin float32 = -50
	VectorMax float32 = 50
)

type Vector2 struct {
	X float32
	Y float32
}

func quantize(v float32) uint16 {
	t := (v - VectorMin) / (VectorMax - VectorMin)
	t = min(max(t, 0), 1)
	return uint16(t * 65535)
}

func unquantize(v uint16) float32 {
	return VectorMin + (VectorMax-VectorMin)*(float32(v)/65535)
}
