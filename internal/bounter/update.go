package bounter

// Update accepts either a map[string]int64 equivalent to the counter
// itself (each entry applied via Increment), or a slice of byte-string
// keys, each incrementing its own count by 1. Any other source type is an
// InvalidArgument error.
func (c *Counter) Update(source any) error {
	switch v := source.(type) {
	case map[string]int64:
		for key, delta := range v {
			if err := c.Increment([]byte(key), delta); err != nil {
				return err
			}
		}
		return nil
	case [][]byte:
		for _, key := range v {
			if err := c.Increment(key, 1); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, key := range v {
			if err := c.Increment([]byte(key), 1); err != nil {
				return err
			}
		}
		return nil
	default:
		return invalidArgument("unsupported update source type %T", source)
	}
}
