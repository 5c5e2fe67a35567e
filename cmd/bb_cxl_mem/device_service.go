package main

import (
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/buildbarn/bb-cxl-memory/pkg/device"
	"github.com/buildbarn/bb-cxl-memory/pkg/extent"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/gorilla/mux"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	templateFuncMap = template.FuncMap{
		"to_duration": func(large, small time.Time) string {
			return large.Sub(small).Truncate(time.Second).String()
		},
		"to_hex": func(v uint64) string {
			return "0x" + strconv.FormatUint(v, 16)
		},
	}

	listDevicesTemplate = template.Must(template.New("ListDevices").Funcs(templateFuncMap).Parse(`
<!DOCTYPE html>
<html>
  <head>
    <title>Buildbarn CXL Memory</title>
    <style>
      html { font-family: sans-serif; }
      table { border-collapse: collapse; }
      table, td, th { border: 1px solid black; }
      td, th { padding-left: 5px; padding-right: 5px; }
    </style>
  </head>
  <body>
    <h1>Buildbarn CXL Memory</h1>
    <table>
      <thead>
        <tr>
          <th>Device</th>
          <th>Base address</th>
          <th>Size</th>
          <th>Block size</th>
          <th>Total blocks</th>
          <th>Free blocks</th>
          <th>Open sessions</th>
        </tr>
      </thead>
      {{range .Devices}}
        <tr>
          <td><a href="devices/{{.Info.Name}}">{{.Info.Name}}</a></td>
          <td style="font-family: monospace">{{to_hex .Info.BaseAddress}}</td>
          <td>{{.Info.SizeBytes}}</td>
          <td>{{.Info.BlockSizeBytes}}</td>
          <td>{{.Info.TotalBlocks}}</td>
          <td>{{.FreeBlocks}}</td>
          <td>{{.Info.OpenSessions}}</td>
        </tr>
      {{end}}
    </table>
  </body>
</html>
`))
	getDeviceTemplate = template.Must(template.New("GetDevice").Funcs(templateFuncMap).Parse(`
<!DOCTYPE html>
<html>
  <head>
    <title>{{.Info.Name}}</title>
    <style>
      html { font-family: sans-serif; }
      table { border-collapse: collapse; }
      table, td, th { border: 1px solid black; }
      td, th { padding-left: 5px; padding-right: 5px; }
    </style>
  </head>
  <body>
    <h1>{{.Info.Name}}</h1>
    <p>Base address: <span style="font-family: monospace">{{to_hex .Info.BaseAddress}}</span></p>
    <p>Block size: {{.Info.BlockSizeBytes}} bytes</p>
    <h2>Memory allocation table</h2>
    <table>
      <thead>
        <tr>
          <th>Owner</th>
          <th>Start block</th>
          <th>Size</th>
          <th>State</th>
        </tr>
      </thead>
      {{range .Extents}}
        <tr>
          <td style="font-family: monospace">{{if .HasOwner}}{{.Owner}}{{else}}-{{end}}</td>
          <td>{{.OffsetBlocks}}</td>
          <td>{{.SizeBlocks}}</td>
          <td>{{.State}}</td>
        </tr>
      {{end}}
    </table>
    <h2>Open sessions</h2>
    <table>
      <thead>
        <tr>
          <th>Owner</th>
          <th>Age</th>
          <th>Mappings</th>
        </tr>
      </thead>
      {{$now := .Now}}
      {{range .Sessions}}
        <tr>
          <td style="font-family: monospace">{{.Owner}}</td>
          <td>{{to_duration $now .OpenedAt}}</td>
          <td>{{len .GetMappings}}</td>
        </tr>
      {{end}}
    </table>
  </body>
</html>
`))
)

type deviceService struct {
	registry *device.Registry
	clock    clock.Clock
}

func newDeviceService(registry *device.Registry, clock clock.Clock, router *mux.Router) *deviceService {
	s := &deviceService{
		registry: registry,
		clock:    clock,
	}
	router.HandleFunc("/", s.handleListDevices)
	router.HandleFunc("/devices/{device}", s.handleGetDevice)
	router.HandleFunc("/api/devices", s.handleAPIListDevices).Methods(http.MethodGet)
	router.HandleFunc("/api/devices/{device}/extents", s.handleAPIGetExtents).Methods(http.MethodGet)
	router.HandleFunc("/api/devices/{device}/sessions", s.handleAPIOpenSession).Methods(http.MethodPost)
	router.HandleFunc("/api/devices/{device}/sessions/{owner}", s.handleAPICloseSession).Methods(http.MethodDelete)
	router.HandleFunc("/api/devices/{device}/sessions/{owner}/mappings", s.handleAPIMap).Methods(http.MethodPost)
	return s
}

// httpStatusFromCode converts the code of a status error returned by
// the device layer to the most appropriate HTTP status code.
func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.ResourceExhausted:
		return http.StatusInsufficientStorage
	case codes.Canceled:
		return http.StatusRequestTimeout
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatusFromCode(status.Code(err)))
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Print(err)
	}
}

func (s *deviceService) getDevice(req *http.Request) (*device.Device, error) {
	name := mux.Vars(req)["device"]
	d, ok := s.registry.Get(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Device %#v does not exist", name)
	}
	return d, nil
}

func (s *deviceService) getSession(req *http.Request) (*device.Session, error) {
	d, err := s.getDevice(req)
	if err != nil {
		return nil, err
	}
	owner := extent.OwnerID(mux.Vars(req)["owner"])
	session, ok := d.GetSession(owner)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Session %#v does not exist on device %s", owner, d.Name())
	}
	return session, nil
}

type deviceState struct {
	Info       device.Info
	FreeBlocks uint64
}

func (s *deviceService) handleListDevices(w http.ResponseWriter, req *http.Request) {
	var devices []deviceState
	for _, d := range s.registry.GetDevices() {
		extents, err := d.GetExtents(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		devices = append(devices, deviceState{
			Info:       d.GetInfo(),
			FreeBlocks: getFreeBlocks(extents),
		})
	}
	if err := listDevicesTemplate.Execute(w, struct {
		Devices []deviceState
	}{
		Devices: devices,
	}); err != nil {
		log.Print(err)
	}
}

func (s *deviceService) handleGetDevice(w http.ResponseWriter, req *http.Request) {
	d, err := s.getDevice(req)
	if err != nil {
		writeError(w, err)
		return
	}
	extents, err := d.GetExtents(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := getDeviceTemplate.Execute(w, struct {
		Now      time.Time
		Info     device.Info
		Extents  []extent.Extent
		Sessions []*device.Session
	}{
		Now:      s.clock.Now(),
		Info:     d.GetInfo(),
		Extents:  extents,
		Sessions: d.GetSessions(),
	}); err != nil {
		log.Print(err)
	}
}

func getFreeBlocks(extents []extent.Extent) uint64 {
	var freeBlocks uint64
	for _, e := range extents {
		if e.State == extent.Free {
			freeBlocks += e.SizeBlocks
		}
	}
	return freeBlocks
}

type apiDevice struct {
	Name           string `json:"name"`
	BaseAddress    uint64 `json:"base_address"`
	SizeBytes      uint64 `json:"size_bytes"`
	BlockSizeBytes uint64 `json:"block_size_bytes"`
	TotalBlocks    uint64 `json:"total_blocks"`
	FreeBlocks     uint64 `json:"free_blocks"`
	OpenSessions   int    `json:"open_sessions"`
}

func (s *deviceService) handleAPIListDevices(w http.ResponseWriter, req *http.Request) {
	devices := []apiDevice{}
	for _, d := range s.registry.GetDevices() {
		extents, err := d.GetExtents(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		info := d.GetInfo()
		devices = append(devices, apiDevice{
			Name:           info.Name,
			BaseAddress:    info.BaseAddress,
			SizeBytes:      info.SizeBytes,
			BlockSizeBytes: info.BlockSizeBytes,
			TotalBlocks:    info.TotalBlocks,
			FreeBlocks:     getFreeBlocks(extents),
			OpenSessions:   info.OpenSessions,
		})
	}
	writeJSON(w, http.StatusOK, devices)
}

type apiExtent struct {
	Owner        *extent.OwnerID `json:"owner,omitempty"`
	OffsetBlocks uint64          `json:"offset_blocks"`
	SizeBlocks   uint64          `json:"size_blocks"`
	State        string          `json:"state"`
}

func (s *deviceService) handleAPIGetExtents(w http.ResponseWriter, req *http.Request) {
	d, err := s.getDevice(req)
	if err != nil {
		writeError(w, err)
		return
	}
	extents, err := d.GetExtents(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	apiExtents := make([]apiExtent, 0, len(extents))
	for _, e := range extents {
		ae := apiExtent{
			OffsetBlocks: e.OffsetBlocks,
			SizeBlocks:   e.SizeBlocks,
			State:        e.State.String(),
		}
		if e.HasOwner {
			ae.Owner = &e.Owner
		}
		apiExtents = append(apiExtents, ae)
	}
	writeJSON(w, http.StatusOK, apiExtents)
}

type apiSession struct {
	Owner extent.OwnerID `json:"owner"`
}

func (s *deviceService) handleAPIOpenSession(w http.ResponseWriter, req *http.Request) {
	d, err := s.getDevice(req)
	if err != nil {
		writeError(w, err)
		return
	}
	session, err := d.Open()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiSession{Owner: session.Owner()})
}

type apiReleasedExtents struct {
	ReleasedExtents int `json:"released_extents"`
}

func (s *deviceService) handleAPICloseSession(w http.ResponseWriter, req *http.Request) {
	session, err := s.getSession(req)
	if err != nil {
		writeError(w, err)
		return
	}
	released, err := session.Close(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiReleasedExtents{ReleasedExtents: released})
}

type apiMapping struct {
	OffsetBlocks    uint64 `json:"offset_blocks"`
	SizeBlocks      uint64 `json:"size_blocks"`
	PhysicalAddress uint64 `json:"physical_address"`
	SizeBytes       uint64 `json:"size_bytes"`
}

func (s *deviceService) handleAPIMap(w http.ResponseWriter, req *http.Request) {
	session, err := s.getSession(req)
	if err != nil {
		writeError(w, err)
		return
	}
	sizeBytes, err := strconv.ParseUint(req.FormValue("size_bytes"), 0, 64)
	if err != nil {
		writeError(w, util.StatusWrapWithCode(err, codes.InvalidArgument, "Invalid mapping size"))
		return
	}
	m, err := session.Map(req.Context(), sizeBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiMapping{
		OffsetBlocks:    m.OffsetBlocks,
		SizeBlocks:      m.SizeBlocks,
		PhysicalAddress: m.PhysicalAddress,
		SizeBytes:       m.SizeBytes,
	})
}
