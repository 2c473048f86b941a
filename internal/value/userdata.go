package value

// UserDataType is the type descriptor every UserData carries: a name
// for diagnostics, an optional finalizer run at sweep time, and an
// optional GC mark callback for payloads that themselves reference
// Values (§3, §4.1). The source's two parallel `mark` implementations
// disagreed on whether userdata falls through to the funcenv case;
// this module always invokes Mark (if any) and treats userdata as
// terminal, per the resolution in §9.
type UserDataType struct {
	Name     string
	Finalize func(payload any)
	Mark     func(payload any, mark func(Value))
}

// UserData is an opaque payload preceded by its type descriptor.
type UserData struct {
	Desc    *UserDataType
	Payload any
}

func (u *UserData) Tag() Tag { return TagUserData }
