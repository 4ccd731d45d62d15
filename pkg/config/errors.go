package config

// Error reports an invalid or missing setting.
type Error struct {
	// Key is the setting or file at fault; may be empty.
	Key     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "configuration error"
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
