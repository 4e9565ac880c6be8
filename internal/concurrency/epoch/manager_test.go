// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerBasicOperations(t *testing.T) {
	Convey("Given a new epoch manager", t, func() {
		m := NewManager()

		Convey("Initially", func() {
			So(m.Epoch(), ShouldEqual, 1)
			So(m.ActiveReaders(), ShouldEqual, 0)
			So(m.RegisteredReaders(), ShouldEqual, 0)
		})

		Convey("When registering a reader", func() {
			r := m.Reader()

			Convey("Then it is quiescent until Enter", func() {
				So(r.Active(), ShouldBeFalse)
				So(m.ActiveReaders(), ShouldEqual, 0)
			})

			Convey("When entering a critical section", func() {
				r.Enter()

				Convey("Then the reader is active", func() {
					So(r.Active(), ShouldBeTrue)
					So(m.ActiveReaders(), ShouldEqual, 1)
				})

				Convey("When exiting", func() {
					r.Exit()

					Convey("Then the reader is quiescent again", func() {
						So(r.Active(), ShouldBeFalse)
						So(m.ActiveReaders(), ShouldEqual, 0)
					})
				})
			})

			Convey("When closing the reader", func() {
				r.Close()

				Convey("Then the slot is unregistered", func() {
					So(m.RegisteredReaders(), ShouldEqual, 0)
				})
			})
		})
	})
}

func TestManagerNestedCriticalSections(t *testing.T) {
	Convey("Given a registered reader", t, func() {
		m := NewManager()
		r := m.Reader()

		Convey("When entering twice and exiting once", func() {
			r.Enter()
			r.Enter()
			r.Exit()

			Convey("Then the reader is still active", func() {
				So(r.Active(), ShouldBeTrue)
			})

			Convey("When exiting the outermost section", func() {
				r.Exit()

				Convey("Then the reader is quiescent", func() {
					So(r.Active(), ShouldBeFalse)
				})
			})
		})

		Convey("When exiting without entering", func() {
			r.Exit()

			Convey("Then nothing changes", func() {
				So(r.Active(), ShouldBeFalse)
				So(m.ActiveReaders(), ShouldEqual, 0)
			})
		})
	})
}

func TestManagerSynchronize(t *testing.T) {
	Convey("Given a manager with no active readers", t, func() {
		m := NewManager()

		Convey("Then Synchronize returns immediately", func() {
			before := m.Epoch()
			m.Synchronize()
			So(m.Epoch(), ShouldEqual, before+1)
		})
	})

	Convey("Given a reader inside a critical section", t, func() {
		m := NewManager()
		r := m.Reader()

		entered := make(chan struct{})
		exited := make(chan struct{})
		done := make(chan struct{})

		go func() {
			r.Enter()
			close(entered)
			<-exited
			r.Exit()
		}()
		<-entered

		Convey("When a writer synchronizes", func() {
			var returned atomic.Bool
			go func() {
				m.Synchronize()
				returned.Store(true)
				close(done)
			}()

			Convey("Then it blocks until the reader exits", func() {
				time.Sleep(20 * time.Millisecond)
				So(returned.Load(), ShouldBeFalse)

				close(exited)
				<-done
				So(returned.Load(), ShouldBeTrue)
			})
		})
	})
}

func TestManagerSynchronizeIgnoresLateReaders(t *testing.T) {
	Convey("Given a manager", t, func() {
		m := NewManager()
		r := m.Reader()

		Convey("When a reader enters after the epoch advance", func() {
			target := m.Advance()
			r.Enter()

			Convey("Then it does not block the earlier grace period", func() {
				So(m.quiescentAt(target), ShouldBeTrue)
				r.Exit()
			})
		})
	})
}

func TestManagerSlotRecycling(t *testing.T) {
	Convey("Given readers acquired and closed repeatedly", t, func() {
		m := NewManager()
		for i := 0; i < 100; i++ {
			r := m.Reader()
			r.Enter()
			r.Exit()
			r.Close()
		}

		Convey("Then the closed slot is reused instead of accumulating", func() {
			So(m.RegisteredReaders(), ShouldEqual, 0)
			m.mu.RLock()
			total := len(m.slots)
			m.mu.RUnlock()
			So(total, ShouldEqual, 1)
		})

		Convey("And closing twice is a no-op", func() {
			r := m.Reader()
			r.Close()
			r.Close()
			So(m.RegisteredReaders(), ShouldEqual, 0)
		})
	})
}

func TestManagerDroppedReaderReturnsSlot(t *testing.T) {
	Convey("Given a handle dropped without Close", t, func() {
		m := NewManager()
		func() {
			r := m.Reader()
			r.Enter()
			r.Exit()
		}()

		Convey("Then the slot is recycled once the handle is collected", func() {
			deadline := time.Now().Add(5 * time.Second)
			for m.RegisteredReaders() > 0 && time.Now().Before(deadline) {
				runtime.GC()
				time.Sleep(time.Millisecond)
			}
			So(m.RegisteredReaders(), ShouldEqual, 0)
		})
	})
}

func TestManagerConcurrentReaders(t *testing.T) {
	Convey("Given many goroutines entering and exiting", t, func() {
		m := NewManager()

		var wg sync.WaitGroup
		const numGoroutines = 8
		const numOps = 1000

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := m.Reader()
				defer r.Close()
				for j := 0; j < numOps; j++ {
					r.Enter()
					r.Exit()
				}
			}()
		}

		// Writers synchronize throughout.
		for i := 0; i < 50; i++ {
			m.Synchronize()
		}
		wg.Wait()

		Convey("Then everything quiesces", func() {
			So(m.ActiveReaders(), ShouldEqual, 0)
			So(m.RegisteredReaders(), ShouldEqual, 0)
		})
	})
}

func BenchmarkReaderEnterExit(b *testing.B) {
	m := NewManager()
	r := m.Reader()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Enter()
		r.Exit()
	}
}

func BenchmarkSynchronizeUncontended(b *testing.B) {
	m := NewManager()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Synchronize()
	}
}
