package codec_test

import (
	"testing"

	"github.com/kcenon/pacsgo/codec"
)

type fakeCodec struct{}

func (fakeCodec) TransferSyntaxUID() string { return "1.2.3.4.5.6" }
func (fakeCodec) Name() string              { return "fake" }
func (fakeCodec) IsLossy() bool             { return false }
func (fakeCodec) CanEncode(codec.Params) bool { return true }
func (fakeCodec) CanDecode(codec.Params) bool { return true }
func (fakeCodec) Encode(pixels []byte, p codec.Params, opts codec.Options) (codec.Result, error) {
	return codec.Result{Data: pixels, OutParams: p}, nil
}
func (fakeCodec) Decode(data []byte, p codec.Params) (codec.Result, error) {
	return codec.Result{Data: data, OutParams: p}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	const uid = "1.2.3.4.5.6.test-register-and-create"
	codec.Register(uid, func() codec.Codec { return fakeCodec{} })

	if !codec.IsSupported(uid) {
		t.Fatalf("IsSupported(%q) = false, want true", uid)
	}
	c, ok := codec.Create(uid)
	if !ok {
		t.Fatalf("Create(%q) failed", uid)
	}
	if c.Name() != "fake" {
		t.Errorf("Name() = %q, want %q", c.Name(), "fake")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	const uid = "1.2.3.4.5.6.test-duplicate"
	codec.Register(uid, func() codec.Codec { return fakeCodec{} })
	defer func() {
		if recover() == nil {
			t.Errorf("Register of a duplicate UID did not panic")
		}
	}()
	codec.Register(uid, func() codec.Codec { return fakeCodec{} })
}

func TestCreateUnknownUID(t *testing.T) {
	if _, ok := codec.Create("bogus-uid-never-registered"); ok {
		t.Errorf("Create of an unregistered UID unexpectedly succeeded")
	}
}

func TestSupportedUIDsContainsRegistered(t *testing.T) {
	const uid = "1.2.3.4.5.6.test-supported-uids"
	codec.Register(uid, func() codec.Codec { return fakeCodec{} })
	found := false
	for _, got := range codec.SupportedUIDs() {
		if got == uid {
			found = true
		}
	}
	if !found {
		t.Errorf("SupportedUIDs() does not contain %q", uid)
	}
}

func TestRejectsOversizedSamples(t *testing.T) {
	cases := []struct {
		p    codec.Params
		want bool
	}{
		{codec.Params{BitsAllocated: 16, SamplesPerPixel: 1}, false},
		{codec.Params{BitsAllocated: 16, SamplesPerPixel: 3}, false},
		{codec.Params{BitsAllocated: 32, SamplesPerPixel: 1}, true},
		{codec.Params{BitsAllocated: 16, SamplesPerPixel: 4}, true},
	}
	for _, c := range cases {
		if got := codec.RejectsOversizedSamples(c.p); got != c.want {
			t.Errorf("RejectsOversizedSamples(%+v) = %v, want %v", c.p, got, c.want)
		}
	}
}
