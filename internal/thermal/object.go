package thermal

// Object is the run-time state of one registered sensor. All fields
// are owned by the manager's event loop; nothing outside it reads or
// writes them.
type Object struct {
	conf           SensorConfig
	status         Status
	requestPending bool
}

func newObject(conf SensorConfig) *Object {
	return &Object{
		conf:   conf,
		status: StatusNormal,
	}
}

// Name returns the sensor name the object was registered with.
func (o *Object) Name() string {
	return o.conf.Name
}
