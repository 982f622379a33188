package nova_test

import (
	"runtime"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/nativetest"
	"github.com/san-kum/novabind/nova"
)

func dynamicDef(p nova.Vec2) nova.BodyDef {
	def := native.DefaultBodyInit()
	def.Kind = nova.Dynamic
	def.Position = p
	return def
}

var _ = Describe("ownership and release", func() {
	var fake *nativetest.Fake

	BeforeEach(func() {
		fake = nativetest.New()
	})

	Context("a body owned by a space", func() {
		var (
			space *nova.Space
			body  *nova.RigidBody
		)

		BeforeEach(func() {
			var err error
			space, err = nova.NewSpace(fake)
			Expect(err).NotTo(HaveOccurred())
			body, err = nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			Expect(err).NotTo(HaveOccurred())
			Expect(space.AddBody(body)).To(Succeed())
		})

		It("refuses Close and keeps the native body", func() {
			Expect(body.Owned()).To(BeTrue())
			Expect(body.Close()).To(MatchError(nova.ErrOwned))
			Expect(fake.Calls("DestroyBody")).To(Equal(0))
			Expect(fake.Live(body.Handle())).To(BeTrue())
		})

		It("releases exactly once after removal", func() {
			Expect(space.RemoveBody(body)).To(Succeed())
			Expect(body.Owned()).To(BeFalse())
			Expect(body.Close()).To(Succeed())
			Expect(body.Close()).To(Succeed())
			Expect(fake.Freed(body.Handle())).To(Equal(1))
			Expect(fake.Calls("DestroyBody")).To(Equal(1))
		})

		It("rejects a duplicate registration without changing the registry", func() {
			Expect(space.AddBody(body)).To(MatchError(nova.ErrDuplicateRegistration))
			Expect(space.BodyCount()).To(Equal(1))
			Expect(fake.Calls("SpaceAddBody")).To(Equal(1))
		})

		It("rejects registration into a second space", func() {
			other, err := nova.NewSpace(fake)
			Expect(err).NotTo(HaveOccurred())
			Expect(other.AddBody(body)).To(MatchError(nova.ErrOwned))
			Expect(other.BodyCount()).To(Equal(0))
			Expect(fake.Parent(body.Handle())).To(Equal(space.Handle()))
		})

		It("hands bodies back when the space closes", func() {
			Expect(space.Close()).To(Succeed())
			Expect(space.BodyCount()).To(Equal(0))
			Expect(body.Owned()).To(BeFalse())
			Expect(fake.Parent(body.Handle())).To(Equal(native.Null))
			Expect(body.Close()).To(Succeed())
			Expect(fake.Freed(body.Handle())).To(Equal(1))
			Expect(space.AddBody(body)).To(MatchError(nova.ErrClosed))
		})
	})

	Context("shapes on a body", func() {
		It("are detached and evicted when the body leaves its space", func() {
			space, err := nova.NewSpace(fake)
			Expect(err).NotTo(HaveOccurred())
			body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			Expect(err).NotTo(HaveOccurred())
			circle, err := nova.NewCircleShape(fake, 0.5, nova.V(0, 0))
			Expect(err).NotTo(HaveOccurred())
			box, err := nova.NewBoxShape(fake, 1, 1, nova.V(0, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(body.AddShape(circle)).To(Succeed())
			Expect(body.AddShape(box)).To(Succeed())
			Expect(space.AddBody(body)).To(Succeed())
			Expect(circle.Close()).To(MatchError(nova.ErrOwned))

			Expect(space.RemoveBody(body)).To(Succeed())
			Expect(body.ShapeCount()).To(Equal(0))
			Expect(circle.Owned()).To(BeFalse())
			Expect(box.Owned()).To(BeFalse())
			Expect(fake.Parent(circle.Handle())).To(Equal(native.Null))

			Expect(circle.Close()).To(Succeed())
			Expect(box.Close()).To(Succeed())
			Expect(fake.Freed(circle.Handle())).To(Equal(1))
			Expect(fake.Freed(box.Handle())).To(Equal(1))
		})

		It("are handed back when the body closes", func() {
			body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			Expect(err).NotTo(HaveOccurred())
			shape, err := nova.NewCircleShape(fake, 1, nova.V(0, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(body.AddShape(shape)).To(Succeed())

			Expect(body.Close()).To(Succeed())
			Expect(shape.Owned()).To(BeFalse())
			Expect(shape.Close()).To(Succeed())
			Expect(fake.Freed(shape.Handle())).To(Equal(1))
		})
	})

	Context("native failures", func() {
		It("rolls a failed registration back", func() {
			space, _ := nova.NewSpace(fake)
			body, _ := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			fake.FailNext("SpaceAddBody", "space full")

			err := space.AddBody(body)
			Expect(err).To(MatchError(nova.ErrNativeOperationFailed))
			Expect(err.Error()).To(ContainSubstring("space full"))
			Expect(space.BodyCount()).To(Equal(0))
			Expect(body.Owned()).To(BeFalse())
			Expect(space.AddBody(body)).To(Succeed())
		})

		It("keeps the registration when native removal fails", func() {
			space, _ := nova.NewSpace(fake)
			body, _ := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			Expect(space.AddBody(body)).To(Succeed())
			fake.FailNext("SpaceRemoveBody", "locked")

			Expect(space.RemoveBody(body)).To(MatchError(nova.ErrNativeOperationFailed))
			Expect(space.BodyCount()).To(Equal(1))
			Expect(body.Owned()).To(BeTrue())
		})

		It("reports a failed free and allows a retry", func() {
			shape, _ := nova.NewCircleShape(fake, 1, nova.V(0, 0))
			fake.FailNext("DestroyShape", "busy")

			Expect(shape.Close()).To(MatchError(nova.ErrNativeOperationFailed))
			Expect(shape.Closed()).To(BeFalse())
			Expect(shape.Close()).To(Succeed())
			Expect(fake.Freed(shape.Handle())).To(Equal(1))
		})

		It("maps a null handle to ErrEngineInitFailed", func() {
			fake.NullNext("CreateSpace")
			_, err := nova.NewSpace(fake)
			Expect(err).To(MatchError(nova.ErrEngineInitFailed))

			fake.NullNext("CreateBody")
			_, err = nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
			Expect(err).To(MatchError(nova.ErrEngineInitFailed))
		})
	})

	Context("collected without Close", func() {
		poll := func(h native.Handle) func() int {
			return func() int {
				runtime.GC()
				return fake.Freed(h)
			}
		}

		It("releases an unowned shape", func() {
			h := func() native.Handle {
				s, err := nova.NewCircleShape(fake, 1, nova.V(0, 0))
				Expect(err).NotTo(HaveOccurred())
				return s.Handle()
			}()
			Eventually(poll(h)).WithTimeout(5 * time.Second).Should(Equal(1))
		})

		It("releases a body and then the shapes it owned", func() {
			bh, sh := func() (native.Handle, native.Handle) {
				b, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
				Expect(err).NotTo(HaveOccurred())
				s, err := nova.NewCircleShape(fake, 1, nova.V(0, 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(b.AddShape(s)).To(Succeed())
				return b.Handle(), s.Handle()
			}()
			Eventually(poll(bh)).WithTimeout(5 * time.Second).Should(Equal(1))
			Eventually(poll(sh)).WithTimeout(5 * time.Second).Should(Equal(1))
		})
	})
})
