// A simple PACS server.
//
// Usage: ./sampleserver -dir <directory> -port 11111
//
// It starts a DICOM server that serves files under <directory>, answers
// Worklist and MPPS requests in memory, and reports C-STORE'd studies back
// out via C-FIND/C-MOVE.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/kcenon/pacsgo"
	"github.com/kcenon/pacsgo/dimse"
	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
)

var (
	portFlag     = flag.String("port", "10000", "TCP port to listen to")
	aeFlag       = flag.String("ae", "bogusae", "AE title of this server")
	remoteAEFlag = flag.String("remote-ae", "GBMAC0261:localhost:11112", `
Comma-separated list of remote AEs, in form aetitle:host:port, For example -remote-ae testae:foo.example.com:12345,testae2:bar.example.com:23456.
In this example, a C-GET or C-MOVE request to application entity "testae" will resolve to foo.example.com:12345.`)
	dirFlag = flag.String("dir", ".", `
The directory to locate DICOM files to report in C-FIND, C-MOVE, etc.
Files are searched recursivsely under this directory.
Defaults to '.'.`)
	outputFlag = flag.String("output", "", `
The directory to store files received by C-STORE.
If empty, use <dir>/incoming, where <dir> is the value of the -dir flag.`)
)

var pathSeq int32

type server struct {
	mu       *sync.Mutex
	datasets map[string]*dicom.DataSet // guarded by mu

	mppsMu  sync.Mutex
	mpps    map[string]netdicom.MPPSStatus // SOP instance UID -> current status
}

func (ss *server) onCStore(
	transferSyntaxUID string,
	sopClassUID string,
	sopInstanceUID string,
	data []byte) dimse.Status {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	p := path.Join(*outputFlag, fmt.Sprintf("image%04d.dcm", atomic.AddInt32(&pathSeq, 1)))

	glog.Infof("Writing %s", p)
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	dicom.WriteFileHeader(e,
		[]*dicom.Element{
			dicom.MustNewElement(dicom.TagTransferSyntaxUID, transferSyntaxUID),
			dicom.MustNewElement(dicom.TagMediaStorageSOPClassUID, sopClassUID),
			dicom.MustNewElement(dicom.TagMediaStorageSOPInstanceUID, sopInstanceUID),
		})
	e.WriteBytes(data)
	if err := e.Error(); err != nil {
		glog.Errorf("%s: failed to write: %v", p, err)
		return dimse.Status{Status: dimse.StatusProcessingFailure}
	}
	if err := ioutil.WriteFile(p, e.Bytes(), 0644); err != nil {
		glog.Errorf("%s: %s", p, err)
		return dimse.Status{Status: dimse.StatusProcessingFailure}
	}

	ds, err := dicom.ReadDataSetFromFile(p, dicom.ReadOptions{DropPixelData: true})
	if err != nil {
		glog.Errorf("%s: failed to parse dicom file: %v", p, err)
	} else {
		ss.datasets[p] = ds
	}
	return dimse.Success()
}

// onMPPSCreate registers a new in-progress MPPS instance. The request's own
// SOPInstanceUID is authoritative when present; an MPPS backend that needs
// to mint its own IDs (e.g. when the modality sends none) would reach for
// uuid.NewString() here, which is why this sample pulls in google/uuid.
func (ss *server) onMPPSCreate(sopInstanceUID string, elems []*dicom.Element) dimse.Status {
	if sopInstanceUID == "" {
		sopInstanceUID = uuid.NewString()
	}
	ss.mppsMu.Lock()
	defer ss.mppsMu.Unlock()
	if _, exists := ss.mpps[sopInstanceUID]; exists {
		return dimse.Status{Status: dimse.StatusDuplicateSOPInstance}
	}
	ss.mpps[sopInstanceUID] = netdicom.MPPSInProgress
	glog.Infof("MPPS N-CREATE: %s now %v (%d attributes)", sopInstanceUID, netdicom.MPPSInProgress, len(elems))
	return dimse.Success()
}

func (ss *server) onMPPSSet(sopInstanceUID string, elems []*dicom.Element) dimse.Status {
	ss.mppsMu.Lock()
	defer ss.mppsMu.Unlock()
	if _, exists := ss.mpps[sopInstanceUID]; !exists {
		return dimse.Status{Status: dimse.StatusNoSuchObjectInstance}
	}
	status := netdicom.MPPSInProgress
	for _, elem := range elems {
		if elem.Tag == dicom.TagPerformedProcedureStepStatus {
			if s, err := elem.GetString(); err == nil {
				switch strings.ToUpper(s) {
				case "COMPLETED":
					status = netdicom.MPPSCompleted
				case "DISCONTINUED":
					status = netdicom.MPPSDiscontinued
				}
			}
		}
	}
	ss.mpps[sopInstanceUID] = status
	glog.Infof("MPPS N-SET: %s now %v", sopInstanceUID, status)
	return dimse.Success()
}

type filterMatch struct {
	path  string
	ds    *dicom.DataSet
	elems []*dicom.Element
}

func (ss *server) findMatchingFiles(filters []*dicom.Element) ([]filterMatch, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var matches []filterMatch
	for p, ds := range ss.datasets {
		allMatched := true
		match := filterMatch{path: p, ds: ds}
		for _, filter := range filters {
			ok, elem, err := dicom.Query(ds, filter)
			if err != nil {
				return matches, err
			}
			if !ok {
				glog.V(2).Infof("DS: %s: filter %v missed", p, filter)
				allMatched = false
				break
			}
			if elem != nil {
				match.elems = append(match.elems, elem)
			} else {
				elem, err := dicom.NewElement(filter.Tag)
				if err != nil {
					glog.Error(err)
					return matches, err
				}
				match.elems = append(match.elems, elem)
			}
		}
		if allMatched {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// onCFind answers both Query/Retrieve C-FIND and Modality Worklist C-FIND
// against the same in-memory dataset map; the two are distinguished only by
// sopClassUID, per netdicom.WorklistHandler's contract.
func (ss *server) onCFind(
	ctx context.Context,
	transferSyntaxUID string,
	sopClassUID string,
	filters []*dicom.Element) chan netdicom.CFindResult {
	ch := make(chan netdicom.CFindResult, 128)
	glog.Infof("C-FIND: classuid: %v, %d filters", sopClassUID, len(filters))
	go func() {
		defer close(ch)
		matches, err := ss.findMatchingFiles(filters)
		glog.Infof("C-FIND: found %d matches, err %v", len(matches), err)
		if err != nil {
			ch <- netdicom.CFindResult{Err: err}
			return
		}
		for _, match := range matches {
			select {
			case <-ctx.Done():
				glog.Infof("C-FIND: stopping early, canceled")
				return
			case ch <- netdicom.CFindResult{Elements: match.elems}:
			}
		}
	}()
	return ch
}

func (ss *server) onCMove(
	ctx context.Context,
	transferSyntaxUID string,
	sopClassUID string,
	filters []*dicom.Element) chan netdicom.CMoveResult {
	ch := make(chan netdicom.CMoveResult, 128)
	go func() {
		defer close(ch)
		matches, err := ss.findMatchingFiles(filters)
		glog.Infof("C-MOVE: found %d matches, err %v", len(matches), err)
		if err != nil {
			ch <- netdicom.CMoveResult{Err: err}
			return
		}
		for i, match := range matches {
			select {
			case <-ctx.Done():
				glog.Infof("C-MOVE: stopping early, canceled")
				return
			case ch <- netdicom.CMoveResult{
				Remaining: len(matches) - i - 1,
				Path:      match.path,
				DataSet:   match.ds,
			}:
			}
		}
	}()
	return ch
}

// Find DICOM files in or under "dir" and read their attributes (excluding
// PixelData).
func listDicomFiles(dir string) (map[string]*dicom.DataSet, error) {
	datasets := make(map[string]*dicom.DataSet)
	readFile := func(p string) {
		if _, ok := datasets[p]; ok {
			return
		}
		ds, err := dicom.ReadDataSetFromFile(p, dicom.ReadOptions{DropPixelData: true})
		if err != nil {
			glog.Errorf("%s: failed to parse dicom file: %v", p, err)
			return
		}
		datasets[p] = ds
	}
	walkCallback := func(p string, info os.FileInfo, err error) error {
		if err != nil {
			glog.Errorf("%v: skip file: %v", p, err)
			return nil
		}
		if info.Mode().IsDir() {
			if _, err := os.Stat(filepath.Join(p, "DICOMDIR")); err != nil {
				return nil
			}
			subpaths, err := filepath.Glob(p + "/*")
			if err != nil {
				glog.Errorf("%v: glob: %v", p, err)
				return nil
			}
			for _, subpath := range subpaths {
				if !strings.HasSuffix(subpath, "DICOMDIR") {
					readFile(subpath)
				}
			}
			return nil
		}
		if strings.HasSuffix(p, ".dcm") {
			readFile(p)
		}
		return nil
	}
	if err := filepath.Walk(dir, walkCallback); err != nil {
		return nil, err
	}
	return datasets, nil
}

func parseRemoteAEFlag(flagValue string) (map[string]string, error) {
	aeMap := make(map[string]string)
	re := regexp.MustCompile("^([^:]+):(.+)$")
	for _, str := range strings.Split(flagValue, ",") {
		if str == "" {
			continue
		}
		m := re.FindStringSubmatch(str)
		if m == nil {
			return aeMap, fmt.Errorf("failed to parse AE spec %q", str)
		}
		aeMap[m[1]] = m[2]
	}
	return aeMap, nil
}

func canonicalizeHostPort(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func main() {
	flag.Parse()
	port := canonicalizeHostPort(*portFlag)
	if *outputFlag == "" {
		*outputFlag = filepath.Join(*dirFlag, "incoming")
	}
	if err := os.MkdirAll(*outputFlag, 0755); err != nil {
		glog.Exitf("%s: %v", *outputFlag, err)
	}

	remoteAEs, err := parseRemoteAEFlag(*remoteAEFlag)
	if err != nil {
		glog.Exitf("Failed to parse -remote-ae flag: %v", err)
	}
	datasets, err := listDicomFiles(*dirFlag)
	if err != nil {
		glog.Exitf("%s: Failed to list dicom files: %v", *dirFlag, err)
	}
	ss := &server{
		mu:       &sync.Mutex{},
		datasets: datasets,
		mpps:     make(map[string]netdicom.MPPSStatus),
	}
	glog.Infof("Listening on %s", port)
	params := netdicom.ServiceProviderParams{
		AETitle:                   *aeFlag,
		RemoteAEs:                 remoteAEs,
		MaxConcurrentAssociations: 32,
		CEcho: func() dimse.Status {
			glog.Info("Received C-ECHO")
			return dimse.Success()
		},
		CFind:      ss.onCFind,
		CMove:      ss.onCMove,
		CStore:     ss.onCStore,
		MPPSCreate: ss.onMPPSCreate,
		MPPSSet:    ss.onMPPSSet,
	}
	sp := netdicom.NewServiceProvider(params)
	if err := sp.Run(port); err != nil {
		glog.Exit(err)
	}
}
