package engine

// fakeResponse is a minimal NativeResponse for registry and mux tests.
type fakeResponse struct {
	status  string
	headers [][2]string
	body    []byte
	ended   bool
	closed  bool
	onData  func(chunk []byte, last bool)
	onAbort func()
}

func (f *fakeResponse) WriteStatus(status string)           { f.status = status }
func (f *fakeResponse) WriteHeader(name, value string)      { f.headers = append(f.headers, [2]string{name, value}) }
func (f *fakeResponse) End(body []byte)                     { f.body = body; f.ended = true }
func (f *fakeResponse) Close()                              { f.closed = true }
func (f *fakeResponse) OnData(fn func(chunk []byte, last bool)) { f.onData = fn }
func (f *fakeResponse) OnAborted(fn func())                 { f.onAbort = fn }
func (f *fakeResponse) RemoteAddr() string                  { return "203.0.113.7:4711" }

// fakeSocket is a minimal NativeWebSocket for broker tests.
type fakeSocket struct {
	sent    [][]byte
	sendErr error
}

func (f *fakeSocket) Send(message []byte, binary bool) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSocket) Close()                                          {}
func (f *fakeSocket) Subscribe(topic string)                          {}
func (f *fakeSocket) Unsubscribe(topic string)                        {}
func (f *fakeSocket) Publish(topic string, message []byte, binary bool) {}
func (f *fakeSocket) RemoteAddr() string                              { return "203.0.113.9:4712" }
