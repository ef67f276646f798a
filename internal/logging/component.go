package logging

// Component is a logger bound to a fixed set of attributes, typically the
// component name and instance id. Attributes passed per call win over the
// bound ones.
type Component struct {
	attrs map[string]interface{}
}

// With returns a Component logger carrying the given key/value pairs.
func With(keyvals ...interface{}) *Component {
	return &Component{attrs: F(keyvals...)}
}

// With returns a copy of c extended with more key/value pairs.
func (c *Component) With(keyvals ...interface{}) *Component {
	return &Component{attrs: c.merge(F(keyvals...))}
}

func (c *Component) merge(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(c.attrs)+len(fields))
	for k, v := range c.attrs {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (c *Component) Debug(msg string, fields ...map[string]interface{}) {
	if !Enabled(LevelDebug) {
		return
	}
	defaultLogger.log(LevelDebug, msg, c.merge(first(fields)))
}

func (c *Component) Info(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelInfo, msg, c.merge(first(fields)))
}

func (c *Component) Warn(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelWarn, msg, c.merge(first(fields)))
}

func (c *Component) Error(msg string, fields ...map[string]interface{}) {
	defaultLogger.log(LevelError, msg, c.merge(first(fields)))
}
