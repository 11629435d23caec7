package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"oss.nandlabs.io/slumber/errutils"
	"oss.nandlabs.io/slumber/l3"
)

var logger = l3.Get()

// SimpleComponent is the struct that implements the Component interface.
type SimpleComponent struct {
	// stateChangeFuncs
	stateChangeFuncs []func(prevState, newState ComponentState)
	//mutex
	mutex sync.RWMutex
	// CompId is the unique identifier for the component.
	CompId string
	// AfterStart is the function that will be called after the component is started
	// The function will be called with the error returned by the StartFunc.
	AfterStart func(err error)
	// BeforeStart is the function that will be called before the component is started
	BeforeStart func()
	// AfterStop is the function that will be called after the component is stopped
	// The function will be called with the error returned by the StopFunc.
	AfterStop func(err error)
	// BeforeStop is the function that will be called before the component is stopped.
	BeforeStop func()
	// CompState is the current state of the component.
	CompState ComponentState
	//StartFunc is the function that will be called when the component is started.
	// It returns an error if the component failed to start.
	StartFunc func() error
	// StopFunc is the function that will be called when the component is stopped.
	// It returns an error if the component failed to stop.
	StopFunc func() error
}

// handleStateChange is the function that will be called when the component state changes.
func (sc *SimpleComponent) handleStateChange(prevState, newState ComponentState) {
	sc.OnChange(prevState, newState)
	if newState == Starting && sc.BeforeStart != nil {
		sc.BeforeStart()
	} else if newState == Stopping && sc.BeforeStop != nil {
		sc.BeforeStop()
	}
}

// ComponentId is the unique identifier for the component.
func (sc *SimpleComponent) Id() string {
	return sc.CompId
}

// OnChange is the function that will be called when the component state changes.
// It calls every function registered through SimpleComponentManager.OnChange.
func (sc *SimpleComponent) OnChange(prevState, newState ComponentState) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	for _, f := range sc.stateChangeFuncs {
		f(prevState, newState)
	}
}

// Start will starting the LifeCycle.
func (sc *SimpleComponent) Start() (err error) {
	if sc.StartFunc != nil {
		sc.handleStateChange(sc.CompState, Starting)
		sc.CompState = Starting
		err = sc.StartFunc()
		if err != nil {
			sc.CompState = Error
		} else {
			sc.CompState = Running

		}
		sc.handleStateChange(Starting, sc.CompState)
		if sc.AfterStart != nil {
			sc.AfterStart(err)
		}

	}
	return
}

// Stop will stop the LifeCycle.
func (sc *SimpleComponent) Stop() (err error) {
	if sc.StopFunc != nil {
		sc.handleStateChange(sc.CompState, Stopping)
		sc.CompState = Stopping
		err = sc.StopFunc()
		if err != nil {
			sc.CompState = Error
		} else {
			sc.CompState = Stopped
		}
		sc.handleStateChange(Stopping, sc.CompState)
		if sc.AfterStop != nil {
			sc.AfterStop(err)

		}

	}
	return
}

// State will return the current state of the LifeCycle.
func (sc *SimpleComponent) State() ComponentState {
	return sc.CompState
}

// SimpleComponentManager is the struct that manages the component.
type SimpleComponentManager struct {
	components   map[string]Component
	componentIds []string
	cMutex       *sync.RWMutex
	waitChan     chan struct{}
}

// GetState will return the current state of the LifeCycle for the component with the given id.
func (scm *SimpleComponentManager) GetState(id string) ComponentState {
	scm.cMutex.RLock()
	defer scm.cMutex.RUnlock()
	component, exists := scm.components[id]
	if exists {
		return component.State()
	}
	return Unknown
}

// List will return a list of all the Components.
func (scm *SimpleComponentManager) List() []Component {
	scm.cMutex.RLock()
	defer scm.cMutex.RUnlock()
	// Create a slice of Component and iterate over the components map and append the components to the slice.
	components := make([]Component, 0, len(scm.components))
	for _, compId := range scm.componentIds {
		components = append(components, scm.components[compId])
	}
	return components
}

// OnChange registers f to be called on every state change of the component
// with the given id. Only *SimpleComponent components accept registered
// functions; for any other Component it has no effect.
func (scm *SimpleComponentManager) OnChange(id string, f func(prevState, newState ComponentState)) {
	scm.cMutex.Lock()
	defer scm.cMutex.Unlock()
	if sc, ok := scm.components[id].(*SimpleComponent); ok {
		sc.mutex.Lock()
		sc.stateChangeFuncs = append(sc.stateChangeFuncs, f)
		sc.mutex.Unlock()
	}
}

// Register will register a new Components.
// if the component is already registered, get the old component.
func (scm *SimpleComponentManager) Register(component Component) Component {
	scm.cMutex.Lock()
	defer scm.cMutex.Unlock()
	//if the component is already registered, keep and return the old component
	oldComponent, exists := scm.components[component.Id()]
	if !exists {
		scm.components[component.Id()] = component
		scm.componentIds = append(scm.componentIds, component.Id())
	}
	return oldComponent
}

// Start will start the LifeCycle for the component with the given id. It returns if the component was started.
func (scm *SimpleComponentManager) Start(id string) (err error) {
	scm.cMutex.Lock()
	defer scm.cMutex.Unlock()
	component, exists := scm.components[id]
	if !exists {
		return ErrCompNotFound
	}
	if component.State() == Running {
		return
	}
	logger.DebugF("Starting component %s", id)
	err = component.Start()
	if err != nil {
		logger.ErrorF("Error starting component: %v", err)
	} else {
		logger.DebugF("Started component %s", id)
	}

	return
}

// StartWithTimeout starts the component and waits for it to reach Running
// before d elapses, returning ErrTimeout otherwise. The component's own
// Start() is not cancelled on timeout; it runs to completion in the background.
func (scm *SimpleComponentManager) StartWithTimeout(id string, d time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- scm.Start(id)
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return ErrTimeout
	}
}

// StartAll will start all the Components, one after another. It returns the
// errors of the components that failed to start, or nil if all started.
func (scm *SimpleComponentManager) StartAll() error {
	var err *errutils.MultiError = errutils.NewMultiErr(nil)
	for _, id := range scm.componentIds {
		e := scm.Start(id)
		if e != nil {
			err.Add(e)
		}
	}
	if err.HasErrors() {
		return err
	} else {
		return nil
	}
}

// StartAllWithTimeout runs StartAll (which starts the components one after
// another) in the background and waits for it to finish before d elapses,
// returning ErrTimeout otherwise.
func (scm *SimpleComponentManager) StartAllWithTimeout(d time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- scm.StartAll()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return ErrTimeout
	}
}

// StartAndWait will start all the Components. And will wait for them to be stopped.
func (scm *SimpleComponentManager) StartAndWait() {
	scm.StartAll() // Start all the components
	scm.Wait()     // Wait for all the components to finish

}

// Stop will stop the LifeCycle for the component with the given id. It returns if the component was stopped.
func (scm *SimpleComponentManager) Stop(id string) (err error) {

	component, exists := scm.components[id]
	if !exists {
		return ErrCompNotFound
	}
	if component.State() == Stopped {
		return
	}
	scm.cMutex.Lock()
	defer scm.cMutex.Unlock()
	if component.State() == Running {
		logger.Debug("Stopping component ", id)
		err = component.Stop()

		if err != nil {
			logger.ErrorF("Error stopping component: %v", err)
		} else {
			logger.InfoF("Stopped component %s", id)
		}

	}
	return
}

// StopWithTimeout stops the component and waits for it to reach Stopped
// before d elapses, returning ErrTimeout otherwise.
func (scm *SimpleComponentManager) StopWithTimeout(id string, d time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- scm.Stop(id)
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return ErrTimeout
	}
}

// StopAll will stop all the Components.
func (scm *SimpleComponentManager) StopAll() error {
	logger.InfoF("Stopping all components")
	err := errutils.NewMultiErr(nil)
	for i := len(scm.componentIds) - 1; i >= 0; i-- {
		e := scm.Stop(scm.componentIds[i])
		if e != nil {
			logger.ErrorF("Error stopping component: %v", err)
			err.Add(e)
		}
	}
	logger.Info("All components stopped")
	select {
	case <-scm.waitChan:
	default:
		close(scm.waitChan)
	}
	if err.HasErrors() {
		return err
	} else {
		return nil
	}
}

// StopAllWithTimeout stops every registered component and waits for all of
// them to finish stopping before d elapses.
func (scm *SimpleComponentManager) StopAllWithTimeout(d time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- scm.StopAll()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return ErrTimeout
	}
}

// Unregister will unregister a Component.
func (scm *SimpleComponentManager) Unregister(id string) {
	scm.cMutex.Lock()
	defer scm.cMutex.Unlock()
	// If component is not registered, return
	if component, exists := scm.components[id]; exists {
		if component.State() == Running {
			component.Stop()
		}
		delete(scm.components, id)
		for i, compId := range scm.componentIds {
			if compId == id {
				scm.componentIds = append(scm.componentIds[:i], scm.componentIds[i+1:]...)
				break
			}
		}
	}
}

// Wait will wait for all the Components to finish.
func (scm *SimpleComponentManager) Wait() {
	<-scm.waitChan
}

// NewSimpleComponentManager will return a new SimpleComponentManager. It
// registers an OS signal handler for SIGINT/SIGTERM that triggers StopAll.
func NewSimpleComponentManager() ComponentManager {
	manager := &SimpleComponentManager{
		components: make(map[string]Component),
		cMutex:     &sync.RWMutex{},
		waitChan:   make(chan struct{}),
	}
	sigs := make(chan os.Signal, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func(manager ComponentManager) {
		sig := <-sigs
		logger.ErrorF("Received signal: %v, Stopping all components", sig)
		err := manager.StopAll()
		if err != nil {
			logger.ErrorF("Error stopping components: %v", err)
		}
	}(manager)
	return manager
}
