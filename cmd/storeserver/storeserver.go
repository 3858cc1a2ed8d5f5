// A minimal DICOM storage SCP: writes every dataset it receives to the
// current directory as image%04d.dcm.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io/ioutil"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/kcenon/pacsgo"
	"github.com/kcenon/pacsgo/dimse"
	"github.com/yasushi-saito/go-dicom"
	"github.com/yasushi-saito/go-dicom/dicomio"
)

var portFlag = flag.String("port", "10000", "TCP port to listen to")

var pathSeq int32

func onCEchoRequest() dimse.Status {
	glog.Info("Received C-ECHO")
	return dimse.Success()
}

func onCStoreRequest(
	transferSyntaxUID string,
	sopClassUID string,
	sopInstanceUID string,
	data []byte) dimse.Status {
	path := fmt.Sprintf("image%04d.dcm", atomic.AddInt32(&pathSeq, 1))

	glog.Infof("Writing %s", path)
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	dicom.WriteFileHeader(e,
		[]*dicom.Element{
			dicom.MustNewElement(dicom.TagTransferSyntaxUID, transferSyntaxUID),
			dicom.MustNewElement(dicom.TagMediaStorageSOPClassUID, sopClassUID),
			dicom.MustNewElement(dicom.TagMediaStorageSOPInstanceUID, sopInstanceUID),
		})
	e.WriteBytes(data)
	if err := e.Error(); err != nil {
		glog.Errorf("%s: failed to write: %v", path, err)
		return dimse.Status{Status: dimse.StatusProcessingFailure}
	}
	if err := ioutil.WriteFile(path, e.Bytes(), 0644); err != nil {
		glog.Errorf("%s: %s", path, err)
		return dimse.Status{Status: dimse.StatusProcessingFailure}
	}
	return dimse.Success()
}

func main() {
	flag.Parse()
	port := *portFlag
	if !strings.Contains(port, ":") {
		port = ":" + port
	}
	glog.Infof("Listening on %s", port)
	params := netdicom.ServiceProviderParams{
		AETitle: "storeserver",
		CEcho:   onCEchoRequest,
		CStore:  onCStoreRequest,
	}
	sp := netdicom.NewServiceProvider(params)
	if err := sp.Run(port); err != nil {
		glog.Exit(err)
	}
}
