package ambient

import "fmt"

// setting is a registered getter/setter pair for one named ambient value.
// Getters read from the calling goroutine; setters apply on a possibly
// different goroutine. Both must be safe to call without registry locks held.
type setting struct {
	name string
	get  func() int64
	set  func(int64)
}

// RegisterSetting registers a named integer setting with the registry.
// A duplicate name is rejected; settings cannot be unregistered.
func (r *Registry) RegisterSetting(name string, get func() int64, set func(int64)) error {
	if get == nil || set == nil {
		return fmt.Errorf("ambient: setting %q needs both getter and setter", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.names[name]; dup {
		return fmt.Errorf("ambient: setting %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.settings = append(r.settings, setting{name: name, get: get, set: set})
	return nil
}

// RegisterSetting registers a setting with the default registry.
func RegisterSetting(name string, get func() int64, set func(int64)) error {
	return Default.RegisterSetting(name, get, set)
}
