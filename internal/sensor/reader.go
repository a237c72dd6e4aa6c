package sensor

// Reader groups the configured channels in descriptor order.
type Reader struct {
	channels []*Channel
}

func NewReader(channels ...*Channel) *Reader {
	return &Reader{channels: channels}
}

func (r *Reader) Channels() []*Channel { return r.channels }

// SetThermocoupleType applies tc to every channel that supports it.
func (r *Reader) SetThermocoupleType(tc ThermocoupleType) error {
	for _, ch := range r.channels {
		if err := ch.SetThermocoupleType(tc); err != nil {
			return err
		}
	}
	return nil
}
