package cbvmeta_test

import "fmt"

type Greeter interface {
	Hello() string
}

type ancient struct{}

func (a *ancient) Greet(name string) string { return "hello " + name }

func (a ancient) Wave() string { return "wave" }

type middle struct {
	ancient
}

type foo struct {
	middle
	Greeter
	Label string
}

func (f *foo) Greet(name string) string {
	// f.middle.Wave() is only mentioned here.
	_ = f.Label
	return f.middle.Greet(name) + fmt.Sprint("!")
}

func (f *foo) Hello() string {
	return f.Greeter.Hello() + f.String()
}

func (f *foo) String() string { return "foo" }

type futuristic struct {
	foo
}

func (f futuristic) Wave() string {
	return f.foo.middle.ancient.Wave() + f.foo.Wave()
}
