package labflow

import (
	"sync"
)

type InstrumentCache interface {
	Invalidate()
	Set([]Instrument)
	GetByID(id string) (Instrument, bool)
	GetAll() []Instrument
}

type instrumentCache struct {
	instruments       []Instrument
	instrumentMapByID map[string]Instrument
	mutex             sync.Mutex
}

func NewInstrumentCache() InstrumentCache {
	return &instrumentCache{}
}

func (ic *instrumentCache) Invalidate() {
	ic.mutex.Lock()
	defer ic.mutex.Unlock()
	ic.instruments = nil
	ic.instrumentMapByID = nil
}

func (ic *instrumentCache) Set(instruments []Instrument) {
	ic.mutex.Lock()
	defer ic.mutex.Unlock()
	ic.instruments = instruments
	ic.instrumentMapByID = make(map[string]Instrument, len(instruments))
	for _, instrument := range instruments {
		ic.instrumentMapByID[instrument.ID] = instrument
	}
}

func (ic *instrumentCache) GetByID(id string) (Instrument, bool) {
	ic.mutex.Lock()
	defer ic.mutex.Unlock()
	if ic.instruments == nil {
		return Instrument{}, false
	}
	instrument, ok := ic.instrumentMapByID[id]
	return instrument, ok
}

func (ic *instrumentCache) GetAll() []Instrument {
	ic.mutex.Lock()
	defer ic.mutex.Unlock()
	if ic.instruments == nil {
		return []Instrument{}
	}
	return ic.instruments
}
