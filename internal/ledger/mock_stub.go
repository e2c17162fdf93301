package ledger

import (
	"github.com/stretchr/testify/mock"
)

func NewStubMock() *StubMock {
	return &StubMock{}
}

// StubMock is a testify mock of Stub. It does not implement Batcher.
type StubMock struct {
	mock.Mock
}

func (s *StubMock) PutState(key string, value []byte) error {
	args := s.MethodCalled("PutState", key, value)
	return args.Error(0)
}

func (s *StubMock) GetState(key string) ([]byte, error) {
	args := s.MethodCalled("GetState", key)
	value, _ := args.Get(0).([]byte)
	return value, args.Error(1)
}

func (s *StubMock) GetStringState(key string) (string, error) {
	args := s.MethodCalled("GetStringState", key)
	return args.String(0), args.Error(1)
}

func (s *StubMock) DelState(key string) error {
	args := s.MethodCalled("DelState", key)
	return args.Error(0)
}

func (s *StubMock) GetStateByRange(start, end string) (StateIterator, error) {
	args := s.MethodCalled("GetStateByRange", start, end)
	iter, _ := args.Get(0).(StateIterator)
	return iter, args.Error(1)
}
