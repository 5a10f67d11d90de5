package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SemSet wraps one System-V semaphore set (a `semget`/`semop` identifier
// holding several binary semaphores). The dense completion-semaphore array
// of §4.B is built from several of these; the per-worker avail/func
// handshake (§4.C) uses a single SemSet with two slots per worker.
type SemSet struct {
	id    int
	nsems int
}

// sembuf mirrors the kernel's struct sembuf; golang.org/x/sys/unix does not
// expose a semget/semop/sembuf wrapper, so we call the syscalls directly
// (the same approach Remove already uses for semctl).
type sembuf struct {
	SemNum uint16
	SemOp  int16
	SemFlg int16
}

// NewSemSet creates (or opens) the semaphore set identified by key, with
// nsems binary semaphores all initialized to 0 by the kernel on creation.
func NewSemSet(key, nsems int) (*SemSet, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(unix.IPC_CREAT|0o666))
	if errno != 0 {
		return nil, fmt.Errorf("semget key=%d nsems=%d: %w", key, nsems, errno)
	}
	return &SemSet{id: int(id), nsems: nsems}, nil
}

func (s *SemSet) op(slot int, delta int16, flags int16) error {
	sops := []sembuf{{SemNum: uint16(slot), SemOp: delta, SemFlg: flags}}
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(s.id), uintptr(unsafe.Pointer(&sops[0])), uintptr(len(sops)))
	if errno != 0 {
		return fmt.Errorf("semop id=%d slot=%d delta=%d: %w", s.id, slot, delta, errno)
	}
	return nil
}

// Post increments slot's semaphore, waking at most one blocked Wait.
func (s *SemSet) Post(slot int) error { return s.op(slot, 1, 0) }

// Wait blocks until slot's semaphore is non-zero, then decrements it.
func (s *SemSet) Wait(slot int) error { return s.op(slot, -1, 0) }

// TryWait attempts a non-blocking decrement, reporting false (no error) if
// the semaphore was already 0 rather than blocking.
func (s *SemSet) TryWait(slot int) (bool, error) {
	err := s.op(slot, -1, unix.IPC_NOWAIT)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, unix.EAGAIN) {
		return false, nil
	}
	return false, err
}

// Remove destroys the semaphore set. Only the parent process should call
// this, during teardown.
func (s *SemSet) Remove() error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(s.id), 0, uintptr(unix.IPC_RMID), 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("semctl IPC_RMID id=%d: %w", s.id, errno)
	}
	return nil
}
